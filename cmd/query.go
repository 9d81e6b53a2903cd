package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
	"github.com/koopa0/localrag/internal/vectorstore"
)

var (
	queryLimit   int
	queryType    string
	queryProject string
	queryTags    []string
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the store with hybrid retrieval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			results, err := sys.Query(ctx, args[0], queryLimit, vectorstore.SearchFilters{
				Type:    queryType,
				Project: queryProject,
				Tags:    queryTags,
			})
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No results.")
				return nil
			}

			for i, res := range results {
				fmt.Printf("%d. %s [chunk %d, score %.4f]\n", i+1, res.FilePath, res.ChunkIndex, res.Score)
				fmt.Printf("   %s\n", snippet(res.Text, 200))
			}
			return nil
		})
	},
}

func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 5, "maximum results (1-50)")
	queryCmd.Flags().StringVar(&queryType, "type", "", "filter by memory type (file, text, url)")
	queryCmd.Flags().StringVar(&queryProject, "project", "", "filter by project")
	queryCmd.Flags().StringSliceVar(&queryTags, "tags", nil, "filter by tags (all must match)")
	rootCmd.AddCommand(queryCmd)
}
