package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"highlightsync/internal/httpx"
)

// MethodMux chooses a handler based on the incoming HTTP method.
func MethodMux(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.Method]; ok {
			h.ServeHTTP(w, r)
			return
		}
		httpx.JSONError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})
}

func get(h http.HandlerFunc) http.Handler {
	return MethodMux(map[string]http.Handler{http.MethodGet: h})
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps collects what NewRouter serves. Metrics and Extract are optional.
type RouterDeps struct {
	Reports        ReportRepository
	Ready          Pinger
	Metrics        http.Handler
	Extract        http.Handler
	JobSecret      string
	AllowedOrigins []string
	RateLimit      *httpx.RateLimitMiddleware
	Logger         *slog.Logger
}

func NewRouter(d RouterDeps) http.Handler {
	reports := NewReportHandler(d.Reports, d.Logger)
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if d.Ready != nil {
			if err := d.Ready.Ping(ctx); err != nil {
				http.Error(w, "store not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/v1/books", get(reports.Books))
	mux.Handle("/v1/annotations", get(reports.Annotations))
	mux.Handle("/v1/stats", get(reports.Stats))
	mux.Handle("/v1/runs", get(reports.Runs))

	if d.Metrics != nil {
		mux.Handle("/metrics", d.Metrics)
	}
	if d.Extract != nil {
		guarded := httpx.RequireSecret("X-Internal-Secret", d.JobSecret)(d.Extract)
		mux.Handle("/internal/jobs/extract", MethodMux(map[string]http.Handler{http.MethodPost: guarded}))
	}

	mws := []func(http.Handler) http.Handler{
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(d.Logger),
		httpx.RecoveryMiddleware(d.Logger),
		httpx.SecurityHeadersMiddleware,
		httpx.CORSMiddleware(d.AllowedOrigins),
	}
	if d.RateLimit != nil {
		mws = append(mws, d.RateLimit.Middleware)
	}
	return httpx.Chain(mux, mws...)
}
