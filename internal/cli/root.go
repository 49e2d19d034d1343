// Package cli implements the worldscars command line tool on top of the API client.
package cli

import (
	"os"

	"github.com/jo-hoe/worldscars/internal/client"
	"github.com/spf13/cobra"
)

const (
	serverEnv     = "WORLDSCARS_SERVER"
	defaultServer = "http://localhost:8080"
)

type options struct {
	server string
}

func (o *options) client() *client.Client {
	return client.New(o.server)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "worldscars",
		Short: "Browse and upload historical images",
		Long: `worldscars talks to a WorldScars server to list, inspect and upload
historical photographs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	server := os.Getenv(serverEnv)
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", server, "Base URL of the WorldScars server (env "+serverEnv+")")

	rootCmd.AddCommand(
		newListCmd(opts),
		newGetCmd(opts),
		newUploadCmd(opts),
		newAddCmd(opts),
	)
	return rootCmd
}

// Execute runs the root command with the process arguments.
func Execute() error {
	return NewRootCmd().Execute()
}
