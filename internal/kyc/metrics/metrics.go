package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus metrics for the KYC workflow.
type Metrics struct {
	Submissions      *prometheus.CounterVec
	Reviews          *prometheus.CounterVec
	DocumentsUploads *prometheus.CounterVec
	DocumentBytes    prometheus.Histogram
	LockContention   prometheus.Counter
	OperationLatency *prometheus.HistogramVec
}

// New registers the KYC metrics with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_submissions_total",
			Help: "KYC submissions by outcome (accepted, invalid)",
		}, []string{"outcome"}),
		Reviews: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_reviews_total",
			Help: "Administrative reviews by resulting status",
		}, []string{"status"}),
		DocumentsUploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kycgate_kyc_documents_uploaded_total",
			Help: "Uploaded KYC documents by type",
		}, []string{"document_type"}),
		DocumentBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kycgate_kyc_document_size_bytes",
			Help:    "Size of uploaded KYC documents",
			Buckets: prometheus.ExponentialBuckets(16*1024, 4, 6),
		}),
		LockContention: factory.NewCounter(prometheus.CounterOpts{
			Name: "kycgate_kyc_lock_contention_total",
			Help: "KYC writes rejected because another write for the same user was in flight",
		}),
		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycgate_kyc_operation_duration_seconds",
			Help:    "Latency of KYC service operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncSubmission(outcome string) {
	m.Submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncReview(status string) {
	m.Reviews.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveUpload(documentType string, size int64) {
	m.DocumentsUploads.WithLabelValues(documentType).Inc()
	m.DocumentBytes.Observe(float64(size))
}

func (m *Metrics) IncLockContention() {
	m.LockContention.Inc()
}

func (m *Metrics) ObserveLatency(operation string, seconds float64) {
	m.OperationLatency.WithLabelValues(operation).Observe(seconds)
}
