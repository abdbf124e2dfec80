package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/phrazzld/taskcore/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context and stores a
// logger carrying it, so handlers can use logger.FromContext.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			log := base.With("trace_id", shared.GetTraceID(ctx))
			ctx = logger.WithLogger(ctx, log)

			log.Debug("request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
