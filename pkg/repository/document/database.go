package document

import (
	"fmt"
	"time"

	"github.com/nimburion/docquery/pkg/idgen"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/observability/metrics"
)

// Database hands out collection facades over a single Executor.
// It is safe for concurrent use.
type Database struct {
	exec    Executor
	newID   idgen.Generator
	now     func() time.Time
	log     logger.Logger
	metrics *metrics.DocumentMetrics
}

// Option configures a Database.
type Option func(*Database)

// WithIDGenerator sets the primary-key generator used by Insert. Defaults to idgen.NanoID.
func WithIDGenerator(g idgen.Generator) Option {
	return func(d *Database) {
		if g != nil {
			d.newID = g
		}
	}
}

// WithClock sets the time source for createdAt and updatedAt.
func WithClock(now func() time.Time) Option {
	return func(d *Database) {
		if now != nil {
			d.now = now
		}
	}
}

// WithLogger sets the logger used for per-operation debug entries.
func WithLogger(l logger.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.log = l
		}
	}
}

// WithMetrics records every executor call in m.
func WithMetrics(m *metrics.DocumentMetrics) Option {
	return func(d *Database) {
		d.metrics = m
	}
}

// NewDatabase wraps exec with tracing, metrics and logging.
func NewDatabase(exec Executor, opts ...Option) (*Database, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	d := &Database{
		newID: idgen.NanoID(),
		now:   time.Now,
		log:   logger.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.exec = &instrumentedExecutor{
		next:    exec,
		system:  systemOf(exec),
		log:     d.log,
		metrics: d.metrics,
	}
	return d, nil
}

// Collection returns the facade for the named collection.
func (d *Database) Collection(name string) *Collection {
	return &Collection{name: name, db: d}
}

func (d *Database) nowMillis() int64 {
	return d.now().UnixMilli()
}
