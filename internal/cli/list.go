package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/jo-hoe/worldscars/internal/client"
	"github.com/spf13/cobra"
)

const dateLayout = "January 2, 2006"

func newListCmd(opts *options) *cobra.Command {
	var (
		query    string
		limit    int
		offset   int
		jsonFlag bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			images, err := opts.client().ListImages(cmd.Context(), client.ListOptions{
				Query:  query,
				Limit:  limit,
				Offset: offset,
			})
			if err != nil {
				return fmt.Errorf("listing images: %w", err)
			}

			if jsonFlag {
				return printJSON(cmd, images)
			}
			if len(images) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No images yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tLOCATION\tUPLOADED")
			for _, image := range images {
				location := image.Location
				if location == "" {
					location = "-"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", image.ID, image.Title, location, image.UploadedAt.Format(dateLayout))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&query, "query", "q", "", "Filter by title, description or location")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of images (0 for the server default)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of images to skip")
	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Output in JSON format")
	return cmd
}

func printJSON(cmd *cobra.Command, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
