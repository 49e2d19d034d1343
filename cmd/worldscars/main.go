package main

import (
	"fmt"
	"os"

	"github.com/jo-hoe/worldscars/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
