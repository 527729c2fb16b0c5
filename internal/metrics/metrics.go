// Package metrics provides Prometheus instrumentation for the terminal engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SnapshotPollsTotal counts state polls by outcome (ok, error, panic).
	SnapshotPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_snapshot_polls_total",
		Help: "Total on-chain state polls",
	}, []string{"result"})

	// SnapshotPollDuration tracks how long one poll takes.
	SnapshotPollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "glaze_snapshot_poll_duration_seconds",
		Help:    "On-chain state poll latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	// SnapshotAge is the age of the snapshot the last tick derived from.
	SnapshotAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glaze_snapshot_age_seconds",
		Help: "Age of the current snapshot at the last tick",
	})

	// CurrentEpoch is the miner epoch id in the current snapshot.
	CurrentEpoch = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glaze_miner_epoch",
		Help: "Miner epoch id of the current snapshot",
	})

	// DerivationErrors counts view fields that fell back to a placeholder.
	DerivationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_derivation_errors_total",
		Help: "Derived values replaced by a placeholder",
	}, []string{"field"})

	// QuotesTotal counts swap quotes by direction and result.
	QuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_quotes_total",
		Help: "Total swap quotes",
	}, []string{"direction", "result"})

	// OracleFetchTotal counts price oracle lookups by result (cached, ok,
	// backoff, stale, error).
	OracleFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_oracle_fetch_total",
		Help: "Price oracle lookups",
	}, []string{"result"})

	// AggregatorRequests counts swap aggregator calls by stage (route,
	// build) and result.
	AggregatorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_aggregator_requests_total",
		Help: "Swap aggregator route and build requests",
	}, []string{"stage", "result"})

	// ProfileLookups counts social profile lookups by result.
	ProfileLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_profile_lookups_total",
		Help: "Social profile bulk lookups",
	}, []string{"result"})

	// GlazesRecorded counts history rows written for new epochs.
	GlazesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glaze_glazes_recorded_total",
		Help: "Glaze history records written",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "glaze_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// WebSocketDropped counts broadcasts dropped for slow clients.
	WebSocketDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "glaze_websocket_dropped_total",
		Help: "Broadcast messages dropped for slow or full clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "glaze_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glaze_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := routePattern(r)
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by chi route pattern to keep cardinality bounded.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through so WebSocket upgrades work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
