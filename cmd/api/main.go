// Command api serves the local highlight store over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"highlightsync/internal/app"
	"highlightsync/internal/config"
	apphttp "highlightsync/internal/http"
	"highlightsync/internal/httpx"
	"highlightsync/internal/ingest"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)
	slog.SetDefault(logger)

	a, err := app.New(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	server, jobs, err := newServer(ctx, a)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.AppAddr, "store", cfg.DBDriver, "dsn", config.RedactDSN(cfg.DBDSN))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
	if jobs != nil {
		jobs.Wait()
	}
	return nil
}

// newServer builds the HTTP server. The extract job endpoint is only mounted
// when INTERNAL_JOB_SECRET is set.
func newServer(ctx context.Context, a *app.App) (*http.Server, *ingest.HTTPHandler, error) {
	cfg := a.Config
	deps := apphttp.RouterDeps{
		Reports:        a.Store,
		Ready:          a.Store,
		Metrics:        a.Metrics.Handler(),
		AllowedOrigins: cfg.CORSOrigins,
		RateLimit:      httpx.NewRateLimitMiddleware(ctx, cfg.APIRPS, cfg.APIBurst),
		Logger:         a.Logger,
	}

	var jobs *ingest.HTTPHandler
	if cfg.InternalJobSecret != "" {
		svc, err := a.Extractor(app.ExtractOptions{})
		if err != nil {
			return nil, nil, err
		}
		jobs = ingest.NewHTTPHandler(ctx, svc, a.Logger)
		deps.Extract = http.HandlerFunc(jobs.Extract)
		deps.JobSecret = cfg.InternalJobSecret
	}

	return &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      apphttp.NewRouter(deps),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, jobs, nil
}
