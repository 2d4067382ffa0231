package ingest

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"highlightsync/internal/httpx"
)

type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// HTTPHandler starts an extraction in the background. At most one runs at a
// time; the run is bound to base, not to the triggering request.
type HTTPHandler struct {
	base    context.Context
	runner  Runner
	logger  *slog.Logger
	running atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

func NewHTTPHandler(base context.Context, runner Runner, logger *slog.Logger) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPHandler{base: base, runner: runner, logger: logger}
}

// Extract handles POST /internal/jobs/extract
// @Summary Trigger notebook extraction
// @Tags internal
// @Produce json
// @Param X-Internal-Secret header string true "Internal secret for authentication"
// @Success 202 {object} httpx.SuccessResponse
// @Failure 401 {object} httpx.ErrorResponse
// @Failure 409 {object} httpx.ErrorResponse
// @Router /internal/jobs/extract [post]
func (h *HTTPHandler) Extract(w http.ResponseWriter, r *http.Request) {
	if !h.running.CompareAndSwap(false, true) {
		httpx.JSONError(w, r, http.StatusConflict, "EXTRACT_RUNNING", "an extraction is already running", nil)
		return
	}

	requestID := httpx.RequestIDFrom(r)
	done := make(chan struct{})
	h.mu.Lock()
	h.done = done
	h.mu.Unlock()
	go func() {
		defer close(done)
		defer h.running.Store(false)
		rep, err := h.runner.Run(h.base)
		if err != nil {
			h.logger.Error("extract job failed", "request_id", requestID, "error", err)
			return
		}
		h.logger.Info("extract job finished", "request_id", requestID, "summary", Summary(rep))
	}()

	httpx.JSONAccepted(w, r, map[string]string{"message": "extraction started"})
}

// Wait blocks until the most recently started job returns.
func (h *HTTPHandler) Wait() {
	h.mu.Lock()
	done := h.done
	h.mu.Unlock()
	if done != nil {
		<-done
	}
}
