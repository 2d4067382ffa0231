package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"highlightsync/internal/app"
	"highlightsync/internal/entity"
	"highlightsync/internal/store"
)

func newReportCmd(c *cli) *cobra.Command {
	var (
		runs   int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show store totals and recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				ctx := cmd.Context()
				stats, err := a.Store.Stats(ctx)
				if err != nil {
					return fmt.Errorf("read stats: %w", err)
				}
				recent, err := a.Store.ListRuns(ctx, runs)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if asJSON {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(map[string]any{"stats": stats, "runs": recent})
				}
				printReport(cmd.OutOrStdout(), stats, recent)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 10, "Number of recent runs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printReport(out io.Writer, stats store.Stats, runs []entity.Run) {
	fmt.Fprintf(out, "books=%d annotations=%d highlights=%d notes=%d enriched=%d\n",
		stats.Books, stats.Annotations, stats.Highlights, stats.Notes, stats.Enriched)
	if stats.LastCaptured != nil {
		fmt.Fprintf(out, "last captured %s\n", stats.LastCaptured.Format(time.RFC3339))
	}
	if len(runs) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tSTATUS\tBOOKS\tINSERTED\tNOTES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
			r.StartedAt.Format(time.RFC3339), r.Kind, r.Status, r.BooksSeen, r.RecordsInserted, r.NotesCreated)
	}
	_ = tw.Flush()
}
