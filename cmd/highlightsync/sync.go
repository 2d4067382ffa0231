package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"highlightsync/internal/app"
	"highlightsync/internal/catalog"
	"highlightsync/internal/errs"
)

func newSyncCmd(c *cli) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "File stored books and annotations into the Zotero collection",
		Long: `Sync makes sure ZOTERO_COLLECTION exists, finds or creates one book item per
stored book (matched by ASIN in the item's Extra field, or by title when the
book has no ASIN) and attaches each highlight and note as a child note.

Books are never duplicated, but notes are created on every run: syncing the
same store twice attaches the notes twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				return c.sync(cmd.Context(), a, title, cmd.OutOrStdout())
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Only sync the book with this title")
	return cmd
}

// requireZotero fails before any work when catalog credentials are missing.
func (c *cli) requireZotero() error {
	if c.cfg.HasZotero() {
		return nil
	}
	return errs.WrapFatal(fmt.Errorf("%w: set ZOTERO_API_KEY and ZOTERO_LIBRARY_ID", errs.ErrMissingConfig), "sync")
}

func (c *cli) sync(ctx context.Context, a *app.App, title string, out io.Writer) error {
	if err := c.requireZotero(); err != nil {
		return err
	}
	svc, err := a.Syncer(title)
	if err != nil {
		return err
	}
	run, err := svc.Run(ctx)
	if run != nil {
		fmt.Fprintln(out, catalog.Summary(run))
	}
	return err
}

func newRunCmd(c *cli) *cobra.Command {
	var f extractFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, then sync",
		Long: `Run performs extract followed by sync. Sync is skipped when the extraction
fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd.Context(), func(a *app.App) error {
				if err := c.requireZotero(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if err := c.extract(cmd.Context(), a, f, out); err != nil {
					return err
				}
				return c.sync(cmd.Context(), a, f.title, out)
			})
		},
	}
	f.register(cmd)
	return cmd
}
