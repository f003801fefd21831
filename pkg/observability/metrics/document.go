package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status label values for document operations.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// DocumentMetrics tracks collection operations.
// Labels: collection, operation, status
type DocumentMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
}

// NewDocumentMetrics creates unregistered document operation collectors.
func NewDocumentMetrics() *DocumentMetrics {
	return &DocumentMetrics{
		operationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "document_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"collection", "operation", "status"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "document_operation_duration_seconds",
				Help:    "Document store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"collection", "operation", "status"},
		),
	}
}

// Collectors returns the collectors to register.
func (m *DocumentMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.operationsTotal, m.operationDuration}
}

// Record counts one operation and observes its duration. A nil receiver is a no-op.
func (m *DocumentMetrics) Record(collection, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.operationsTotal.WithLabelValues(collection, operation, status).Inc()
	m.operationDuration.WithLabelValues(collection, operation, status).Observe(duration.Seconds())
}
