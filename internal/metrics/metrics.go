// Package metrics exposes Prometheus counters for the feedback pipeline.
//
// All metrics are prefixed with "welisten_":
//   - welisten_feedback_created_total - feedback accepted and kept
//   - welisten_duplicates_rejected_total - submissions rejected as duplicates
//   - welisten_classifier_requests_total{outcome} - classifier calls by outcome
//   - welisten_classifier_duration_seconds - classifier call latency
//   - welisten_upvotes_total - upvotes recorded
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Classifier outcomes.
const (
	OutcomeDuplicate = "duplicate"
	OutcomeUnique    = "unique"
	OutcomeError     = "error"
	OutcomeSkipped   = "skipped"
)

type Metrics struct {
	feedbackCreated    prometheus.Counter
	duplicatesRejected prometheus.Counter
	classifierRequests *prometheus.CounterVec
	classifierDuration prometheus.Histogram
	upvotes            prometheus.Counter
}

// New registers the metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		feedbackCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "welisten_feedback_created_total",
			Help: "Total number of feedback records created",
		}),
		duplicatesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "welisten_duplicates_rejected_total",
			Help: "Total number of submissions rejected as duplicates",
		}),
		classifierRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "welisten_classifier_requests_total",
				Help: "Total number of duplicate classifier requests",
			},
			[]string{"outcome"},
		),
		classifierDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "welisten_classifier_duration_seconds",
			Help:    "Duration of duplicate classifier requests in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		upvotes: factory.NewCounter(prometheus.CounterOpts{
			Name: "welisten_upvotes_total",
			Help: "Total number of upvotes recorded",
		}),
	}
}

func (m *Metrics) FeedbackCreated() {
	if m == nil {
		return
	}
	m.feedbackCreated.Inc()
}

func (m *Metrics) DuplicateRejected() {
	if m == nil {
		return
	}
	m.duplicatesRejected.Inc()
}

// ClassifierRequest records one classifier call and its latency.
func (m *Metrics) ClassifierRequest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.classifierRequests.WithLabelValues(outcome).Inc()
	m.classifierDuration.Observe(elapsed.Seconds())
}

// ClassifierSkipped records a screening that never reached the classifier
// because the candidate lookup failed.
func (m *Metrics) ClassifierSkipped() {
	if m == nil {
		return
	}
	m.classifierRequests.WithLabelValues(OutcomeSkipped).Inc()
}

func (m *Metrics) Upvoted() {
	if m == nil {
		return
	}
	m.upvotes.Inc()
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
