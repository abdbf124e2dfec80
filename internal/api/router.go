package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskcore/internal/api/middleware"
	"github.com/phrazzld/taskcore/internal/api/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RequestTimeout bounds the handling of a single API request.
const RequestTimeout = 30 * time.Second

// NewRouter wires the task API, the health check and, when gatherer is
// non-nil, the Prometheus endpoint.
func NewRouter(h *TaskHandler, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(RequestTimeout))
	r.Use(middleware.NewTraceMiddleware(logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/queues", h.ListQueues)
		r.Route("/queues/{queue}/tasks", func(r chi.Router) {
			r.Post("/", h.EnqueueTask)
			r.Get("/{id}", h.GetTask)
		})
	})

	return r
}
