package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
)

var (
	ingestTags    []string
	ingestProject string
	ingestAuthor  string
	ingestTTL     string
	ingestText    string
	ingestLabel   string
	ingestURL     string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a file, folder, text snippet or URL",
	Long: `Ingest content into the store.

With a path argument, ingests the file, or every supported file under a
folder. With --text and --label, stores a memory snippet. With --url,
fetches a page and stores its readable content.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := rag.IngestOptions{
			Tags:    ingestTags,
			Project: ingestProject,
			Author:  ingestAuthor,
			TTL:     ingestTTL,
		}

		return withSystem(func(ctx context.Context, sys *rag.System) error {
			switch {
			case ingestText != "":
				if err := sys.IngestText(ctx, ingestLabel, ingestText, opts); err != nil {
					return err
				}
				fmt.Printf("Stored memory://%s\n", ingestLabel)
				return nil

			case ingestURL != "":
				if err := sys.IngestURL(ctx, ingestURL, opts); err != nil {
					return err
				}
				fmt.Printf("Ingested %s\n", ingestURL)
				return nil

			case len(args) == 1:
				info, err := os.Stat(args[0])
				if err != nil {
					return err
				}
				if info.IsDir() {
					if err := sys.IngestFolder(ctx, args[0], opts); err != nil {
						return err
					}
				} else if err := sys.IngestFile(ctx, args[0], opts); err != nil {
					return err
				}
				fmt.Printf("Ingested %s\n", args[0])
				return nil

			default:
				return fmt.Errorf("nothing to ingest: give a path, --text with --label, or --url")
			}
		})
	},
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTags, "tags", nil, "tags to attach")
	ingestCmd.Flags().StringVar(&ingestProject, "project", "", "project name")
	ingestCmd.Flags().StringVar(&ingestAuthor, "author", "", "author name")
	ingestCmd.Flags().StringVar(&ingestTTL, "ttl", "", "expiry like 30d, 12h or 1y")
	ingestCmd.Flags().StringVar(&ingestText, "text", "", "text snippet to store")
	ingestCmd.Flags().StringVar(&ingestLabel, "label", "", "label for --text (word characters, dots, hyphens)")
	ingestCmd.Flags().StringVar(&ingestURL, "url", "", "page URL to fetch and store")
	rootCmd.AddCommand(ingestCmd)
}
