package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jo-hoe/worldscars/internal/client"
	"github.com/spf13/cobra"
)

type metadataFlags struct {
	title       string
	description string
	location    string
}

func (m *metadataFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&m.title, "title", "", "Title of the image (required)")
	cmd.Flags().StringVar(&m.description, "description", "", "Description")
	cmd.Flags().StringVar(&m.location, "location", "", "Where the photograph was taken")
	_ = cmd.MarkFlagRequired("title")
}

func newUploadCmd(opts *options) *cobra.Command {
	var (
		meta metadataFlags
		file string
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload an image file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("opening %s: %w", file, err)
			}
			defer f.Close()

			image, err := opts.client().UploadImage(cmd.Context(), client.UploadImageRequest{
				Title:       meta.title,
				Description: meta.description,
				Location:    meta.location,
				Filename:    filepath.Base(file),
				Content:     f,
			})
			if err != nil {
				return fmt.Errorf("uploading %s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Uploaded image %d: %s\n", image.ID, image.ImageURL)
			return nil
		},
	}

	meta.register(cmd)
	cmd.Flags().StringVar(&file, "file", "", "Path of the image file (required)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		meta     metadataFlags
		imageURL string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an image that is hosted elsewhere",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := opts.client().CreateImage(cmd.Context(), client.CreateImageRequest{
				Title:       meta.title,
				Description: meta.description,
				Location:    meta.location,
				ImageURL:    imageURL,
			})
			if err != nil {
				return fmt.Errorf("adding %s: %w", imageURL, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added image %d: %s\n", image.ID, image.Title)
			return nil
		},
	}

	meta.register(cmd)
	cmd.Flags().StringVar(&imageURL, "url", "", "URL of the image (required)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
