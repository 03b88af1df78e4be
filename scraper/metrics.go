// scraper/metrics.go
package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the trail sync pipeline.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	TrailsSaved     prometheus.Counter
	ReviewsParsed   prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailguard_requests_total",
			Help: "Total upstream HTTP requests by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trailguard_request_duration_seconds",
			Help:    "Upstream HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	trailsSaved := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trailguard_trails_saved_total",
			Help: "Total trail records persisted by sync runs.",
		},
	)
	reviewsParsed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trailguard_reviews_parsed_total",
			Help: "Total reviews parsed from upstream pages.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trailguard_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, trailsSaved, reviewsParsed, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		TrailsSaved:     trailsSaved,
		ReviewsParsed:   reviewsParsed,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the request counter for a phase label.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an upstream request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncTrailsSaved increments the persisted-trail counter.
func (m *Metrics) IncTrailsSaved() {
	if m == nil {
		return
	}
	m.TrailsSaved.Inc()
}

// AddReviewsParsed adds to the parsed-review counter.
func (m *Metrics) AddReviewsParsed(n int) {
	if m == nil {
		return
	}
	m.ReviewsParsed.Add(float64(n))
}

// IncError increments the error counter for err's type bucket.
func (m *Metrics) IncError(err error) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorTypeLabel(err)).Inc()
}
