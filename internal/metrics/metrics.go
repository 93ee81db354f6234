// Package metrics registers the Prometheus collectors for the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/aanand-mishra/contact-form/internal/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Submission outcomes.
const (
	OutcomeRejected     = "rejected"
	OutcomeDelivered    = "delivered"
	OutcomeStoredOnly   = "stored_only"
	OutcomeNotifiedOnly = "notified_only"
	OutcomeFailed       = "failed"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status_code"},
	)

	// Business metrics
	contactSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contact_submissions_total",
			Help: "Total number of contact form submissions by outcome",
		},
		[]string{"outcome"},
	)

	archiveAppendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_appends_total",
			Help: "Total number of archive append attempts",
		},
		[]string{"status"}, // ok, lock_timeout, io_failure
	)

	archiveAppendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_append_duration_seconds",
			Help:    "Archive append duration in seconds, lock wait included",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of owner notification attempts",
		},
		[]string{"status"}, // sent, failed
	)
)

// Instrument records request count and latency for next under route.
// route is a fixed label so arbitrary paths cannot blow up cardinality.
func Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := middleware.NewStatusRecorder(w)
		next.ServeHTTP(wrapped, r)

		statusCode := strconv.Itoa(wrapped.Status)
		httpRequestsTotal.WithLabelValues(r.Method, route, statusCode).Inc()
		httpRequestDuration.WithLabelValues(r.Method, route, statusCode).Observe(time.Since(start).Seconds())
	})
}

// RecordSubmission records the final outcome of one submission.
func RecordSubmission(outcome string) {
	contactSubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAppend records one archive append; status is "ok", "lock_timeout" or "io_failure".
func RecordAppend(status string, duration time.Duration) {
	archiveAppendsTotal.WithLabelValues(status).Inc()
	archiveAppendDuration.Observe(duration.Seconds())
}

// RecordNotification records a notification attempt
func RecordNotification(sent bool) {
	status := "failed"
	if sent {
		status = "sent"
	}
	notificationsTotal.WithLabelValues(status).Inc()
}
