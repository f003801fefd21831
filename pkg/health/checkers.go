package health

import (
	"context"
	"time"

	"github.com/nimburion/docquery/pkg/resilience"
)

// DefaultTimeout bounds a single check when none is configured.
const DefaultTimeout = 5 * time.Second

// Checkable is implemented by store adapters.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker reports the connectivity of a store adapter.
type AdapterChecker struct {
	name    string
	adapter Checkable
	timeout time.Duration
	system  string
}

// NewAdapterChecker creates a health checker for an adapter. system is
// reported as metadata ("mongodb", "dynamodb").
func NewAdapterChecker(name, system string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AdapterChecker{name: name, adapter: adapter, timeout: timeout, system: system}
}

// Check pings the adapter within the checker timeout. A ping that ignores
// its context is abandoned once the timeout passes.
func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := resilience.WithTimeout(ctx, c.timeout, c.adapter.HealthCheck)
	return newResult(c.name, err, time.Since(start), map[string]any{"system": c.system})
}

// Name returns the name of the health check
func (c *AdapterChecker) Name() string {
	return c.name
}

// ReadChecker runs a read against a collection. A read slower than the
// degraded threshold reports StatusDegraded.
type ReadChecker struct {
	name       string
	collection string
	read       func(ctx context.Context) error
	timeout    time.Duration
	degraded   time.Duration
}

// NewReadChecker creates a checker around read. A zero degraded threshold
// disables the degraded state.
func NewReadChecker(name, collection string, read func(ctx context.Context) error, timeout, degraded time.Duration) *ReadChecker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ReadChecker{name: name, collection: collection, read: read, timeout: timeout, degraded: degraded}
}

// Check runs the read.
func (c *ReadChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	err := resilience.WithTimeout(ctx, c.timeout, c.read)
	elapsed := time.Since(start)

	result := newResult(c.name, err, elapsed, map[string]any{"collection": c.collection})
	if err == nil && c.degraded > 0 && elapsed > c.degraded {
		result.Status = StatusDegraded
		result.Message = "slow response"
	}
	return result
}

// Name returns the name of the health check
func (c *ReadChecker) Name() string {
	return c.name
}

func newResult(name string, err error, elapsed time.Duration, metadata map[string]any) CheckResult {
	result := CheckResult{
		Name:      name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  elapsed,
		Metadata:  metadata,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}
