// Package main implements mdindex, a CLI that rebuilds, exports and searches the markdown index
// without running the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/docgraph/backend/internal/app"
	"github.com/docgraph/backend/pkg/config"
	"github.com/docgraph/backend/pkg/logger"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mdindex",
	Short: "Index a directory of markdown documents into a searchable graph",
	Long: `mdindex parses markdown documents into sections, categorizes them against a
keyword vocabulary, derives link, containment, hierarchy and category relationships,
and stores the result in a SQLite full-text index.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default: search ./, ./config, /etc/mdgraph)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(searchCmd)
}

// openApp loads configuration, applies overrides and connects the stores.
func openApp(ctx context.Context, override func(*config.Config)) (*app.App, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return nil, err
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := logger.Init(logLevel, "console", "stderr"); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return app.Open(ctx, cfg)
}
