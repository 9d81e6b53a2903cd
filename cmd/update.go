package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
)

var (
	updateReplace     string
	updateAppend      string
	updatePrepend     string
	updateReplaceTags []string
	updateAddTags     []string
	updateRemoveTags  []string
)

var updateCmd = &cobra.Command{
	Use:   "update <label>",
	Short: "Edit a stored memory in place",
	Long: `Edit a memory document. Text edits (--replace, --append, --prepend)
apply to the full reconstructed text; tag edits merge into the current tag
list, with --replace-tags winning over --add-tags/--remove-tags. The document
is re-chunked and re-embedded afterwards.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			err := sys.UpdateMemory(ctx, args[0], rag.MemoryUpdate{
				Replace:     updateReplace,
				Append:      updateAppend,
				Prepend:     updatePrepend,
				ReplaceTags: updateReplaceTags,
				AddTags:     updateAddTags,
				RemoveTags:  updateRemoveTags,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Updated %s\n", args[0])
			return nil
		})
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateReplace, "replace", "", "replace the whole text")
	updateCmd.Flags().StringVar(&updateAppend, "append", "", "append to the text")
	updateCmd.Flags().StringVar(&updatePrepend, "prepend", "", "prepend to the text")
	updateCmd.Flags().StringSliceVar(&updateReplaceTags, "replace-tags", nil, "replace the tag list")
	updateCmd.Flags().StringSliceVar(&updateAddTags, "add-tags", nil, "tags to add")
	updateCmd.Flags().StringSliceVar(&updateRemoveTags, "remove-tags", nil, "tags to remove")
	rootCmd.AddCommand(updateCmd)
}
