package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope. It must wrap
// a handler that sees the same ResponseWriter as the access log, so it can
// tell whether headers already went out.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw, ok := w.(*responseWriter)
			if !ok {
				rw = &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			}
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic recovered",
						"request_id", RequestIDFrom(r),
						"error", err,
						"stack", string(debug.Stack()),
					)
					if !rw.wroteHeader() {
						JSONError(rw, r, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred", nil)
					}
				}
			}()
			next.ServeHTTP(rw, r)
		})
	}
}
