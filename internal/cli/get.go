package cli

import (
	"fmt"
	"strconv"

	"github.com/jo-hoe/worldscars/internal/client"
	"github.com/spf13/cobra"
)

func newGetCmd(opts *options) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show a single image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid image id %q", args[0])
			}

			image, err := opts.client().GetImage(cmd.Context(), id)
			if client.IsNotFound(err) {
				return fmt.Errorf("image %d not found", id)
			}
			if err != nil {
				return fmt.Errorf("fetching image %d: %w", id, err)
			}

			if jsonFlag {
				return printJSON(cmd, image)
			}
			printImage(cmd, image)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	return cmd
}

func printImage(cmd *cobra.Command, image *client.Image) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %d\n", image.ID)
	fmt.Fprintf(out, "Title:       %s\n", image.Title)
	if image.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", image.Description)
	}
	if image.Location != "" {
		fmt.Fprintf(out, "Location:    %s\n", image.Location)
	}
	fmt.Fprintf(out, "Image URL:   %s\n", image.ImageURL)
	fmt.Fprintf(out, "Uploaded on: %s\n", image.UploadedAt.Format(dateLayout))
}
