// Package cmd implements the localrag command-line interface.
//
// Following the pattern used by kubectl, hugo, and other standard Go CLI
// tools, all application logic lives here, leaving main.go as a minimal
// entry point.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/localrag/internal/config"
	"github.com/koopa0/localrag/internal/log"
	"github.com/koopa0/localrag/internal/rag"
)

var (
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "localrag",
	Short: "localrag - a local RAG engine over PostgreSQL and Ollama",
	Long: `localrag ingests files, folders, text snippets and web pages into a
local vector store and answers hybrid (vector + keyword) similarity queries.

Everything runs locally: embeddings come from an Ollama model and storage is
PostgreSQL with pgvector.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit logs as JSON")
}

func newLogger() log.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return log.New(log.Config{Level: level, JSON: logJSON})
}

// withSystem wires a fully configured engine, runs fn, and tears the engine
// down afterwards. The context cancels on SIGINT/SIGTERM.
func withSystem(fn func(ctx context.Context, sys *rag.System) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	sys, err := rag.New(ctx, cfg, newLogger())
	if err != nil {
		return err
	}
	defer sys.Shutdown()

	return fn(ctx, sys)
}
