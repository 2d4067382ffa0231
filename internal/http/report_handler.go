package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"highlightsync/internal/entity"
	"highlightsync/internal/httpx"
	"highlightsync/internal/store"
)

const maxAnnotationLimit = 500

//go:generate mockgen -source=report_handler.go -destination=mock_report_test.go -package=http

// ReportRepository is the read side of the local store.
type ReportRepository interface {
	Books(ctx context.Context) ([]entity.BookKey, error)
	Query(ctx context.Context, f store.Filter) ([]entity.Annotation, error)
	Stats(ctx context.Context) (store.Stats, error)
	ListRuns(ctx context.Context, limit int) ([]entity.Run, error)
}

type ReportHandler struct {
	repo   ReportRepository
	logger *slog.Logger
}

func NewReportHandler(repo ReportRepository, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{repo: repo, logger: logger}
}

type annotationQuery struct {
	Title    string `query:"title" validate:"max=500"`
	VendorID string `query:"vendor_id" validate:"omitempty,vendor_id"`
	Kind     string `query:"kind" validate:"omitempty,oneof=highlight note"`
	Limit    int    `query:"limit" validate:"gte=0,lte=500"`
}

// Books handles GET /v1/books
// @Summary List stored books
// @Tags reports
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/books [get]
func (h *ReportHandler) Books(w http.ResponseWriter, r *http.Request) {
	books, err := h.repo.Books(r.Context())
	if err != nil {
		h.serverError(w, r, "list books", err)
		return
	}
	if books == nil {
		books = []entity.BookKey{}
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"count": len(books)})
}

// Annotations handles GET /v1/annotations
// @Summary Query stored highlights and notes
// @Tags reports
// @Produce json
// @Param title query string false "Exact book title"
// @Param vendor_id query string false "ASIN"
// @Param kind query string false "highlight or note"
// @Param limit query int false "Maximum rows" default(0)
// @Success 200 {object} httpx.SuccessResponse
// @Failure 400 {object} httpx.ErrorResponse
// @Router /v1/annotations [get]
func (h *ReportHandler) Annotations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := annotationQuery{
		Title:    q.Get("title"),
		VendorID: q.Get("vendor_id"),
		Kind:     q.Get("kind"),
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters",
				[]httpx.ErrorDetail{{Field: "limit", Message: "limit must be an integer"}})
			return
		}
		params.Limit = n
	}
	if details := ValidateStruct(params); details != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid query parameters", details)
		return
	}

	records, err := h.repo.Query(r.Context(), store.Filter{
		Title:    params.Title,
		VendorID: params.VendorID,
		Kind:     entity.Kind(params.Kind),
		Limit:    params.Limit,
	})
	if err != nil {
		h.serverError(w, r, "query annotations", err)
		return
	}
	if records == nil {
		records = []entity.Annotation{}
	}
	httpx.JSONSuccess(w, r, records, map[string]any{"count": len(records)})
}

// Stats handles GET /v1/stats
// @Summary Store totals
// @Tags reports
// @Produce json
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/stats [get]
func (h *ReportHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.repo.Stats(r.Context())
	if err != nil {
		h.serverError(w, r, "stats", err)
		return
	}
	httpx.JSONSuccess(w, r, stats, nil)
}

// Runs handles GET /v1/runs
// @Summary Recent extraction and sync runs
// @Tags reports
// @Produce json
// @Param limit query int false "Maximum runs" default(20)
// @Success 200 {object} httpx.SuccessResponse
// @Router /v1/runs [get]
func (h *ReportHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.serverError(w, r, "list runs", err)
		return
	}
	if runs == nil {
		runs = []entity.Run{}
	}
	httpx.JSONSuccess(w, r, runs, map[string]any{"count": len(runs)})
}

func (h *ReportHandler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op+" failed", "error", err, "request_id", httpx.RequestIDFrom(r))
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
}
