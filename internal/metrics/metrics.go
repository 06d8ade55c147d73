package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scraper's Prometheus collectors. All methods are safe to
// call on a nil *Metrics.
type Metrics struct {
	JobsProcessed         *prometheus.CounterVec
	RetrievalDuration     *prometheus.HistogramVec
	RetrievalFailures     *prometheus.CounterVec
	EmptyResults          *prometheus.CounterVec
	ConfirmationFallbacks *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_scraper_jobs_processed_total",
			Help: "Jobs processed by type and outcome",
		}, []string{"type", "outcome"}),
		RetrievalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_scraper_retrieval_duration_seconds",
			Help:    "Time spent retrieving raw HTML from the registry",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"strategy", "operation"}),
		RetrievalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_scraper_retrieval_failures_total",
			Help: "Retrieval or parse failures contained by the pipeline",
		}, []string{"strategy", "operation"}),
		EmptyResults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_scraper_empty_results_total",
			Help: "Operations that produced no records",
		}, []string{"operation"}),
		ConfirmationFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_scraper_confirmation_fallbacks_total",
			Help: "Searches that had to pass the too-many-results confirmation",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) ObserveJob(jobType, outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(jobType, outcome).Inc()
}

func (m *Metrics) ObserveRetrieval(strategy, operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalDuration.WithLabelValues(strategy, operation).Observe(d.Seconds())
}

func (m *Metrics) IncFailure(strategy, operation string) {
	if m == nil {
		return
	}
	m.RetrievalFailures.WithLabelValues(strategy, operation).Inc()
}

func (m *Metrics) IncEmpty(operation string) {
	if m == nil {
		return
	}
	m.EmptyResults.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncConfirmation(strategy string) {
	if m == nil {
		return
	}
	m.ConfirmationFallbacks.WithLabelValues(strategy).Inc()
}
