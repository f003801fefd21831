// Package metrics provides Prometheus metrics for document store operations.
package metrics

import (
	"fmt"

	"github.com/nimburion/docquery/pkg/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry manages Prometheus metrics registration and exposure.
// It includes document operation metrics and Go runtime metrics by default.
type Registry struct {
	registry  *prometheus.Registry
	documents *DocumentMetrics
}

// NewRegistry creates a new metrics registry with default collectors.
// It automatically registers:
// - document operation metrics (counter, duration histogram)
// - Go runtime metrics (goroutines, memory, GC)
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	documents := NewDocumentMetrics()
	reg.MustRegister(documents.Collectors()...)

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Registry{
		registry:  reg,
		documents: documents,
	}
}

// Documents returns the document operation metrics owned by this registry.
func (r *Registry) Documents() *DocumentMetrics {
	return r.documents
}

// Register registers a custom Prometheus collector.
func (r *Registry) Register(collector prometheus.Collector) error {
	return r.registry.Register(collector)
}

// MustRegister registers custom collectors and panics on error.
func (r *Registry) MustRegister(collectors ...prometheus.Collector) {
	r.registry.MustRegister(collectors...)
}

// Unregister removes a collector from the registry.
// This is primarily useful for testing.
func (r *Registry) Unregister(collector prometheus.Collector) bool {
	return r.registry.Unregister(collector)
}

// WriteTextfile writes the current metrics in the text exposition format to
// path, for collection by the node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if path == "" {
		return fmt.Errorf("metrics textfile path is required")
	}
	if err := security.ValidateFilePath(path, ""); err != nil {
		return fmt.Errorf("metrics textfile %q: %w", path, err)
	}
	return prometheus.WriteToTextfile(path, r.registry)
}

// Gatherer returns the underlying prometheus.Gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
