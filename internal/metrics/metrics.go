package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cargo_market",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cargo_market",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cargo_market",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "route"},
	)

	operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cargo_market",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Engine operations by outcome (ok, rejected, invalid, not_found, error).",
		},
		[]string{"op", "outcome"},
	)

	snapshotSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cargo_market",
			Subsystem: "snapshot",
			Name:      "saves_total",
			Help:      "Snapshot saves by success.",
		},
		[]string{"success"},
	)

	snapshotDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cargo_market",
			Subsystem: "snapshot",
			Name:      "save_duration_seconds",
			Help:      "Duration of snapshot saves.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
	)

	players = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cargo_market",
			Subsystem: "engine",
			Name:      "players",
			Help:      "Number of players in the current game.",
		},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cargo_market",
			Subsystem: "snapshot",
			Name:      "backups_total",
			Help:      "Scheduled backups by success.",
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		operations,
		snapshotSaves,
		snapshotDuration,
		players,
		backups,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps next with HTTP metrics. Requests are labelled by
// their chi route pattern so path parameters do not explode cardinality.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

// RecordOperation counts one engine operation.
func RecordOperation(op, outcome string) {
	operations.WithLabelValues(op, outcome).Inc()
}

// RecordSnapshotSave records one snapshot write.
func RecordSnapshotSave(duration time.Duration, success bool) {
	snapshotSaves.WithLabelValues(strconv.FormatBool(success)).Inc()
	snapshotDuration.Observe(duration.Seconds())
}

// RecordBackup counts one scheduled backup.
func RecordBackup(success bool) {
	backups.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// SetPlayers publishes the current roster size.
func SetPlayers(n int) {
	players.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}
