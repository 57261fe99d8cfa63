package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docgraph/backend/pkg/config"
)

var (
	indexDir  string
	indexJSON bool
)

func init() {
	indexCmd.Flags().StringVar(&indexDir, "dir", "", "documents directory (overrides indexer.docsDir)")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "print the run report as JSON")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the whole index from the documents directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, func(cfg *config.Config) {
			if indexDir != "" {
				cfg.Indexer.DocsDir = indexDir
			}
		})
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		report, err := a.Indexer.Rebuild(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if indexJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprintf(out, "run %s: %d documents, %d sections, %d relationships in %s\n",
			report.RunID, report.Documents, report.Sections, report.Relationships, report.Duration)
		for _, s := range report.Skipped {
			fmt.Fprintf(out, "skipped %s: %s\n", s.Path, s.Reason)
		}
		return nil
	},
}
