// Package app wires configuration into the extraction and sync services
// shared by the command-line tool and the API server.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"highlightsync/internal/catalog"
	"highlightsync/internal/config"
	"highlightsync/internal/enrich"
	"highlightsync/internal/errs"
	"highlightsync/internal/ingest"
	"highlightsync/internal/metric"
	"highlightsync/internal/notebook"
	"highlightsync/internal/platform/amazon"
	"highlightsync/internal/platform/googlebooks"
	"highlightsync/internal/platform/openlibrary"
	"highlightsync/internal/platform/zotero"
	"highlightsync/internal/store"
)

const userAgent = "highlightsync/1.0"

type App struct {
	Config  config.Config
	Logger  *slog.Logger
	Store   store.Store
	Metrics *metric.Metrics
}

// New opens the configured store. A store that cannot be opened is fatal.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, withRuntime bool) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := store.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, errs.WrapFatal(err, fmt.Sprintf("open %s store (%s)", cfg.DBDriver, config.RedactDSN(cfg.DBDSN)))
	}
	logger.Debug("store opened", "driver", cfg.DBDriver)
	return &App{
		Config:  cfg,
		Logger:  logger,
		Store:   st,
		Metrics: metric.New(withRuntime),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// ExtractOptions override the configured extraction defaults for one run.
type ExtractOptions struct {
	Title    string
	MaxBooks int
	NoEnrich bool
}

func (a *App) Extractor(opts ExtractOptions) (*ingest.Service, error) {
	sel := notebook.DefaultSelectors()
	if a.Config.SelectorsFile != "" {
		loaded, err := notebook.LoadSelectors(a.Config.SelectorsFile)
		if err != nil {
			return nil, errs.WrapFatal(err, "load selectors")
		}
		sel = loaded
	}
	source := notebook.NewDir(a.Config.SnapshotDir, sel, a.Logger)

	var enricher ingest.Enricher
	if !opts.NoEnrich {
		enricher = a.Enricher()
	}

	cfg := ingest.Config{
		BookPause:  a.Config.BookPause,
		BookJitter: a.Config.BookJitter,
		Title:      opts.Title,
		MaxBooks:   opts.MaxBooks,
	}
	return ingest.NewService(source, enricher, a.Store, a.Store, cfg, a.Metrics, a.Logger), nil
}

// Enricher builds the vendor page → ISBN → catalog search chain. Open Library
// is consulted only when Google Books has no match and the fallback is on.
func (a *App) Enricher() *enrich.Chain {
	c := a.Config
	vendor := amazon.NewClient(c.HTTPRPS, c.HTTPTimeout).WithMetrics(a.Metrics)
	searcher := enrich.ISBNSearcher(a.Books())
	if c.OpenLibraryFallback {
		searcher = enrich.FirstOf(searcher, openlibrary.NewClient(userAgent, c.HTTPRPS, c.HTTPTimeout).WithMetrics(a.Metrics))
	}
	return enrich.NewChain(vendor, searcher, a.Logger)
}

// Books is the title/author capable catalog search.
func (a *App) Books() *googlebooks.Client {
	return googlebooks.NewClient(userAgent, a.Config.GoogleBooksAPIKey, a.Config.HTTPRPS, a.Config.HTTPTimeout).WithMetrics(a.Metrics)
}

// Syncer builds the catalog service. Missing credentials are fatal.
func (a *App) Syncer(title string) (*catalog.Service, error) {
	c := a.Config
	client, err := zotero.NewClient(c.ZoteroAPIKey, c.ZoteroLibraryID, c.ZoteroLibraryType, c.HTTPRPS, c.HTTPTimeout)
	if err != nil {
		return nil, err
	}
	client.WithMetrics(a.Metrics)
	cfg := catalog.Config{
		Collection: c.ZoteroCollection,
		ImportTag:  c.ImportTag,
		Title:      title,
	}
	return catalog.NewService(client, a.Store, a.Store, cfg, a.Metrics, a.Logger), nil
}

// FlushMetrics writes the textfile when METRICS_FILE is set.
func (a *App) FlushMetrics() {
	if a.Config.MetricsFile == "" {
		return
	}
	if err := a.Metrics.WriteTextfile(a.Config.MetricsFile); err != nil {
		a.Logger.Warn("write metrics textfile failed", "path", a.Config.MetricsFile, "error", err)
	}
}
