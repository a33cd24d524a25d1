package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "kycgate/pkg/platform/audit"
)

type Metrics struct {
	entriesEmitted  *prometheus.CounterVec
	persistFailures prometheus.Counter
	persistDuration prometheus.Histogram
}

// NewMetrics registers the publisher metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		entriesEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_audit_entries_emitted_total",
			Help: "Audit entries persisted, by action",
		}, []string{"action"}),
		persistFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_audit_persist_failures_total",
			Help: "Audit entries that failed to persist",
		}),
		persistDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycgate_audit_persist_duration_seconds",
			Help:    "Time spent persisting an audit entry",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEntriesEmitted(action audit.Action) {
	m.entriesEmitted.WithLabelValues(string(action)).Inc()
}

func (m *Metrics) IncPersistFailures() {
	m.persistFailures.Inc()
}

func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.persistDuration.Observe(seconds)
}
