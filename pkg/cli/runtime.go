package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimburion/docquery/pkg/config"
	"github.com/nimburion/docquery/pkg/idgen"
	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/observability/metrics"
	"github.com/nimburion/docquery/pkg/observability/tracing"
	"github.com/nimburion/docquery/pkg/repository/document"
	"github.com/nimburion/docquery/pkg/store"
	"github.com/nimburion/docquery/pkg/version"
	"github.com/spf13/pflag"
)

// BackendOpener opens the configured document store.
type BackendOpener func(cfg config.DatabaseConfig, log logger.Logger) (*store.Backend, error)

// runtime holds everything a data command needs, opened from one config.
type runtime struct {
	cfg     *config.Config
	log     logger.Logger
	backend *store.Backend
	db      *document.Database
	metrics *metrics.Registry
	tracer  *tracing.TracerProvider
}

func openRuntime(ctx context.Context, cfg *config.Config, log logger.Logger, open BackendOpener) (*runtime, error) {
	if open == nil {
		open = store.Open
	}
	rt := &runtime{cfg: cfg, log: log}

	info := version.Current(cfg.Service.Name)
	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Insecure:       cfg.Observability.TracingInsecure,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}
	rt.tracer = tracer

	newID, err := idgen.New(cfg.Database.IDGenerator)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}

	backend, err := open(cfg.Database, log)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Type, err)
	}
	rt.backend = backend

	opts := []document.Option{
		document.WithIDGenerator(newID),
		document.WithLogger(log),
	}
	if cfg.Observability.MetricsEnabled {
		rt.metrics = metrics.NewRegistry()
		opts = append(opts, document.WithMetrics(rt.metrics.Documents()))
	}
	db, err := document.NewDatabase(backend.Executor, opts...)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	rt.db = db

	log.Debug("runtime ready",
		"store", backend.Type,
		"id_generator", cfg.Database.IDGenerator,
		"tracing", cfg.Observability.TracingEnabled,
		"metrics", cfg.Observability.MetricsEnabled,
	)
	return rt, nil
}

// Close flushes metrics and spans and releases the store. Failures are logged
// and joined.
func (r *runtime) Close(ctx context.Context) error {
	var errs []error
	if r.metrics != nil && strings.TrimSpace(r.cfg.Observability.MetricsTextfile) != "" {
		if err := r.metrics.WriteTextfile(r.cfg.Observability.MetricsTextfile); err != nil {
			r.log.Error("failed to write metrics textfile", "path", r.cfg.Observability.MetricsTextfile, "error", err)
			errs = append(errs, err)
		}
	}
	if r.tracer != nil {
		if err := r.tracer.Shutdown(ctx); err != nil {
			r.log.Error("failed to shut down tracer provider", "error", err)
			errs = append(errs, err)
		}
	}
	if r.backend != nil {
		if err := r.backend.Close(); err != nil {
			r.log.Error("failed to close store", "store", r.backend.Type, "error", err)
			errs = append(errs, err)
		}
	}
	syncLogger(r.log)
	return errors.Join(errs...)
}

func syncLogger(log logger.Logger) {
	if s, ok := log.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
}

// loadConfigAndLogger loads configuration and builds the zap logger it describes.
func loadConfigAndLogger(cfgPath, envPrefix string, flags *pflag.FlagSet) (*config.Config, logger.Logger, error) {
	cfg, err := config.NewViperLoader(cfgPath, envPrefix).WithFlags(flags).Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level, err := logger.ParseLogLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := logger.ParseLogFormat(cfg.Observability.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.NewZapLogger(logger.Config{Level: level, Format: format})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}

	if level == logger.DebugLevel {
		log.Debug("effective configuration", "config", cfg.Redacted())
	}
	return cfg, log, nil
}
