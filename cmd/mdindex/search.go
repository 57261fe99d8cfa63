package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over documents and sections",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, nil)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		hits, err := a.Store.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tID\tTITLE\tSNIPPET")
		for _, h := range hits {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", h.Kind, h.ID, h.Title, strings.ReplaceAll(h.Snippet, "\n", " "))
		}
		return w.Flush()
	},
}
