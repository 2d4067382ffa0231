package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"highlightsync/internal/app"
	"highlightsync/internal/ingest"
	"highlightsync/internal/session"
)

type extractFlags struct {
	title    string
	maxBooks int
	noEnrich bool
}

func (f *extractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Only process the book with this exact title")
	cmd.Flags().IntVar(&f.maxBooks, "max-books", 0, "Stop after this many books (0 = all)")
	cmd.Flags().BoolVar(&f.noEnrich, "no-enrich", false, "Skip ISBN and metadata lookups")
}

func newExtractCmd(c *cli) *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Read notebook snapshots into the local store",
		Long: `Extract parses every saved notebook page in SNAPSHOT_DIR, pairs each highlight
with the note written directly after it, and stores the records. Records already
stored are left untouched, so repeated runs only add what is new.

When AUTH_STATE_FILE is set the saved browser session is checked first and the
run stops if it is missing or expired.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return c.extract(cmd.Context(), a, f, cmd.OutOrStdout())
			})
		},
	}
	f.register(cmd)
	return cmd
}

func (c *cli) extract(ctx context.Context, a *app.App, f extractFlags, out io.Writer) error {
	if c.cfg.AuthStateFile != "" {
		if err := session.Check(c.cfg.AuthStateFile, time.Now()); err != nil {
			return err
		}
	}
	svc, err := a.Extractor(app.ExtractOptions{Title: f.title, MaxBooks: f.maxBooks, NoEnrich: f.noEnrich})
	if err != nil {
		return err
	}
	rep, err := svc.Run(ctx)
	if rep.Run != nil {
		fmt.Fprint(out, ingest.Summary(rep))
	}
	return err
}
