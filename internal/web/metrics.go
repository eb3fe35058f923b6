package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the Prometheus collectors of one Server. Each Server owns
// its registry so several servers (tests) can coexist in a process.
//
// Metrics:
//   - questcal_http_requests_total{route,code}
//   - questcal_http_request_duration_seconds{route}
//   - questcal_validations_total{result}
//   - questcal_occurrences_built
type metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	validations *prometheus.CounterVec
	occurrences prometheus.Histogram
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcal_http_requests_total",
				Help: "Total number of API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "questcal_http_request_duration_seconds",
				Help:    "Duration of API requests in seconds",
				Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
			[]string{"route"},
		),
		validations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "questcal_validations_total",
				Help: "Calendar validations by verdict",
			},
			[]string{"result"}, // "compatible" or "incompatible"
		),
		occurrences: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "questcal_occurrences_built",
				Help:    "Number of occurrences produced per build",
				Buckets: []float64{0, 5, 10, 25, 50, 100, 250},
			},
		),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) observeValidation(compatible bool) {
	result := "incompatible"
	if compatible {
		result = "compatible"
	}
	m.validations.WithLabelValues(result).Inc()
}

// instrument counts requests and their latency for route.
func (m *metrics) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
