package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"highlightsync/internal/app"
	"highlightsync/internal/config"
)

// cli carries what PersistentPreRunE loaded into the subcommands.
type cli struct {
	cfg    config.Config
	logger *slog.Logger
	// open is swapped in tests.
	open func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error)
}

func newRootCmd() *cobra.Command {
	c := &cli{
		open: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app.App, error) {
			return app.New(ctx, cfg, logger, false)
		},
	}
	var verbose bool

	root := &cobra.Command{
		Use:   "highlightsync",
		Short: "Extract reading highlights and sync them to Zotero",
		Long: `highlightsync reads saved notebook pages, pairs highlights with their notes,
enriches each book with ISBN metadata and stores everything locally. The sync
command then files every stored book and its annotations into a Zotero
collection.

Configuration comes from the environment, .env and .env.local.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnvFiles()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if verbose {
				cfg.LogLevel = slog.LevelDebug
			}
			c.cfg = cfg
			c.logger = config.NewLogger(os.Stderr, cfg.LogLevel)
			slog.SetDefault(c.logger)
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at debug level")

	root.AddCommand(
		newExtractCmd(c),
		newSyncCmd(c),
		newRunCmd(c),
		newLookupCmd(c),
		newReportCmd(c),
		newSessionCmd(c),
	)
	return root
}

// withApp opens the store for the duration of fn and flushes metrics after.
func (c *cli) withApp(ctx context.Context, fn func(a *app.App) error) error {
	a, err := c.open(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		a.FlushMetrics()
		if err := a.Close(); err != nil {
			c.logger.Warn("close store failed", "error", err)
		}
	}()
	return fn(a)
}
