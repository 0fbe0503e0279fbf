/*
server.go - HTTP router and middleware stack

PURPOSE:
  Assembles the chi router: standard middleware, CORS for browser
  dashboards, the API routes grouped by authorization level, and the
  Prometheus metrics endpoint.

SEE ALSO:
  - handlers.go: Route implementations
  - cmd/server/main.go: Server lifecycle
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the full route tree around the handler.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.Metrics != nil {
		r.Use(h.Metrics.CountRequests)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Actor-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/links/verify", h.Verify)
		r.Get("/status/{token}", h.Status)

		r.Route("/personnel/{id}", func(r chi.Router) {
			r.Post("/complete", h.Complete)
			r.Post("/uncomplete", h.Uncomplete)
			r.Post("/defer", h.Defer)
			r.Post("/defer/clear", h.ClearDeferment)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.RequireAdmin)
			r.Get("/personnel", h.ListPersonnel)
			r.Post("/personnel", h.AddPersonnel)
			r.Delete("/personnel/{id}", h.RemovePersonnel)
			r.Post("/links/unlink", h.Unlink)
			r.Post("/import", h.Import)
			r.Get("/report.csv", h.ReportCSV)
			r.Post("/tick", h.Tick)
		})
	})

	return r
}
