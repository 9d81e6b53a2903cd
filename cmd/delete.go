package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Delete a document by key or memory label",
	Long: `Delete every chunk of a document. The key is a file path, a
memory://label or url://label key, or a bare memory label.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			if err := sys.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
