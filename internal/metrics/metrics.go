package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grhooks",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by method and status code.",
	}, []string{"method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grhooks",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	DeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grhooks",
		Name:      "deliveries_total",
		Help:      "Webhook deliveries by origin and outcome.",
	}, []string{"origin", "outcome"})

	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grhooks",
		Name:      "command_duration_seconds",
		Help:      "Dispatched command latency in seconds.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"result"})

	CommandsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grhooks",
		Name:      "commands_in_flight",
		Help:      "Number of commands currently running.",
	})

	Routes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grhooks",
		Name:      "routes",
		Help:      "Number of webhook definitions in the active routing table.",
	})

	ReloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grhooks",
		Name:      "config_reloads_total",
		Help:      "Routing table reloads by result (applied, unchanged, failed).",
	}, []string{"result"})
)

// Handler returns an http.Handler that serves the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware wraps an http.Handler to record request metrics. Paths are
// not a label: webhook paths come from clients.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		HTTPRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

// ObserveCommand records one dispatched command.
func ObserveCommand(start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	CommandDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
