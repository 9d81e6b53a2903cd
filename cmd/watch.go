package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/rag"
)

var watchRecursive bool

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watch a file or folder and keep it ingested",
	Long: `Watch a path and re-ingest files as they change. The watch
configuration is persisted, so watched paths are picked up again on the next
start. The command keeps running until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			if err := sys.Watch(ctx, args[0], watchRecursive); err != nil {
				return err
			}
			fmt.Printf("Watching %s (Ctrl-C to stop)\n", args[0])
			<-ctx.Done()
			return nil
		})
	},
}

var unwatchCmd = &cobra.Command{
	Use:   "unwatch <path>",
	Short: "Stop watching a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSystem(func(ctx context.Context, sys *rag.System) error {
			if err := sys.Unwatch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("Stopped watching %s\n", args[0])
			return nil
		})
	},
}

func init() {
	watchCmd.Flags().BoolVarP(&watchRecursive, "recursive", "r", false, "watch subdirectories too")
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(unwatchCmd)
}
