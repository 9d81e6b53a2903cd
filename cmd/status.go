package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and worker pool status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			st, err := sys.GetStatus(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Documents:     %d\n", st.Documents)
			fmt.Printf("Chunks:        %d\n", st.Chunks)
			fmt.Printf("Watched paths: %d\n", st.WatchedPaths)
			fmt.Printf("Keyword search: %v\n", st.FTSEnabled)
			fmt.Printf("Workers:       %d (%d busy, %d queued)\n",
				st.Workers.Workers, st.Workers.Busy, st.Workers.Queued)
			return nil
		})
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove expired documents now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			removed, err := sys.CleanupExpired(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d expired documents\n", removed)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanupCmd)
}
