/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters for the operations worth watching in production: daily ticks,
  reminders decided, report builds and import rows. Exposed on /metrics
  via promhttp in server.go.
*/
package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TicksTotal      prometheus.Counter
	RemindersTotal  prometheus.Counter
	ReportsTotal    prometheus.Counter
	ImportRowsTotal *prometheus.CounterVec
	RequestsTotal   *prometheus.CounterVec
}

// NewMetrics registers the engine metrics on the given registerer.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "readiness_ticks_total",
			Help: "Daily reminder ticks executed.",
		}),
		RemindersTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "readiness_reminders_total",
			Help: "Reminder decisions that fired.",
		}),
		ReportsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "readiness_reports_total",
			Help: "Report tables built.",
		}),
		ImportRowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readiness_import_rows_total",
			Help: "Import rows processed by outcome.",
		}, []string{"outcome"}),
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "readiness_http_requests_total",
			Help: "HTTP requests by method and status class.",
		}, []string{"method", "class"}),
	}
}

// CountRequests is router middleware tallying requests by status class.
func (m *Metrics) CountRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		class := strconv.Itoa(ww.Status()/100) + "xx"
		m.RequestsTotal.WithLabelValues(r.Method, class).Inc()
	})
}
