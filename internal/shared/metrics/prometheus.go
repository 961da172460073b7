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
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Business metrics
	patientsRegistered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "patients_registered_total",
			Help: "Total number of patients registered",
		},
		[]string{"severity"},
	)

	// rankingRequests distinguishes primary-path successes from fallback
	// rankings, which is how a distance-ranked match stays observable even
	// though the returned data shape is identical.
	rankingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Total number of candidate ranking computations by source",
		},
		[]string{"source"}, // primary, fallback, empty
	)

	rankingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ranking_request_duration_seconds",
			Help:    "External ranking call duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	transferFanOut = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transfer_fanout_size",
			Help:    "Number of sibling transfer requests created per patient",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
		},
	)

	transferResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_resolutions_total",
			Help: "Total number of transfer request terminal transitions",
		},
		[]string{"status"}, // accepted, rejected, cancelled
	)

	transferConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transfer_accept_conflicts_total",
			Help: "Total number of accept attempts that lost the winner race",
		},
	)

	chatChannelsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_channels_created_total",
			Help: "Total number of chat channels provisioned",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware creates HTTP metrics middleware
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizePath normalizes URL paths for metrics to avoid cardinality explosion
func normalizePath(path string) string {
	if len(path) > 100 {
		return "/api/..."
	}
	return path
}

// --- Business metric helpers ---

// RecordPatientRegistered records a patient registration
func RecordPatientRegistered(severityCode string) {
	patientsRegistered.WithLabelValues(severityCode).Inc()
}

// RecordRanking records a ranking computation and its source
// ("primary", "fallback" or "empty")
func RecordRanking(source string) {
	rankingRequests.WithLabelValues(source).Inc()
}

// RecordRankingDuration records the external ranking call duration
func RecordRankingDuration(duration time.Duration) {
	rankingDuration.Observe(duration.Seconds())
}

// RecordFanOut records the number of sibling requests created for a patient
func RecordFanOut(size int) {
	transferFanOut.Observe(float64(size))
}

// RecordResolution records a transfer request terminal transition
func RecordResolution(status string) {
	transferResolutions.WithLabelValues(status).Inc()
}

// RecordAcceptConflict records an accept attempt that lost the race
func RecordAcceptConflict() {
	transferConflicts.Inc()
}

// RecordChatChannelCreated records a provisioned chat channel
func RecordChatChannelCreated() {
	chatChannelsCreated.Inc()
}
