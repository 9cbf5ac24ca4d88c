package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the registry's Prometheus instruments.
type Metrics struct {
	submissions    *prometheus.CounterVec
	rapidFlags     prometheus.Counter
	storeErrors    prometheus.Counter
	submitDuration prometheus.Histogram
}

// NewMetrics registers the registry instruments with reg. A nil reg creates
// unregistered instruments, which tests use to avoid global collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "verify_submissions_total",
			Help: "Total submissions by classification status",
		}, []string{"status"}),
		rapidFlags: factory.NewCounter(prometheus.CounterOpts{
			Name: "verify_rapid_duplicate_flags_total",
			Help: "Total registry entries flagged for rapid duplication",
		}),
		storeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "verify_store_errors_total",
			Help: "Total registry store failures during submission",
		}),
		submitDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "verify_submit_duration_seconds",
			Help:    "Time to classify one submission",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observeStatus(status Status) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeFlag() {
	if m == nil {
		return
	}
	m.rapidFlags.Inc()
}

func (m *Metrics) observeStoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}

func (m *Metrics) observeDuration(seconds float64) {
	if m == nil {
		return
	}
	m.submitDuration.Observe(seconds)
}
