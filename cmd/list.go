package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
	"github.com/koopa0/localrag/internal/vectorstore"
)

var (
	listType    string
	listProject string
	listTags    []string
	listLimit   int
	listOffset  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored documents, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			items, err := sys.List(ctx, vectorstore.ListOptions{
				Filters: vectorstore.SearchFilters{
					Type:    listType,
					Project: listProject,
					Tags:    listTags,
				},
				Limit:  listLimit,
				Offset: listOffset,
			})
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("No documents.")
				return nil
			}

			for _, item := range items {
				fmt.Printf("%s  (%d chunks, %s)\n",
					item.FilePath, item.ChunkCount, item.Timestamp.Format("2006-01-02 15:04"))
				if len(item.Metadata.Tags) > 0 {
					fmt.Printf("  tags: %v\n", item.Metadata.Tags)
				}
			}
			return nil
		})
	},
}

func init() {
	listCmd.Flags().StringVar(&listType, "type", "", "filter by memory type (file, text, url)")
	listCmd.Flags().StringVar(&listProject, "project", "", "filter by project")
	listCmd.Flags().StringSliceVar(&listTags, "tags", nil, "filter by tags (all must match)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum documents (0 = all)")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "documents to skip")
	rootCmd.AddCommand(listCmd)
}
