package document

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nimburion/docquery/pkg/observability/logger"
	"github.com/nimburion/docquery/pkg/observability/metrics"
	"github.com/nimburion/docquery/pkg/query"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	return recorder
}

func TestInstrumentedExecutor_RecordsSpans(t *testing.T) {
	recorder := setupTestTracer(t)
	db, _ := newTestDatabase(t)
	users := db.Collection("users")
	ctx := context.Background()

	rec := mustInsert(t, users, Record{"name": "Ada"})
	if _, err := users.Query().Filter("name", query.OpEqual, "Ada").All(ctx); err != nil {
		t.Fatalf("All: %v", err)
	}
	if _, err := users.Query().Paginate(ctx, 2, 5); err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if _, err := users.Remove(ctx, rec[IDField].(string)); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	spans := recorder.Ended()
	want := []string{"DB db.insert users", "DB db.find users", "DB db.paginate users", "DB db.delete users"}
	if len(spans) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(spans))
	}
	for i, name := range want {
		if spans[i].Name() != name {
			t.Errorf("span %d: expected %q, got %q", i, name, spans[i].Name())
		}
	}

	attrs := map[string]string{}
	for _, kv := range spans[1].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs["db.system"] != SystemMemory {
		t.Errorf("expected db.system %q, got %q", SystemMemory, attrs["db.system"])
	}
	if attrs["db.statement"] != "name = Ada" {
		t.Errorf("expected db.statement %q, got %q", "name = Ada", attrs["db.statement"])
	}

	pageAttrs := map[string]string{}
	for _, kv := range spans[2].Attributes() {
		pageAttrs[string(kv.Key)] = kv.Value.Emit()
	}
	if pageAttrs["db.skip"] != "5" || pageAttrs["db.limit"] != "5" {
		t.Errorf("expected skip=5 limit=5, got skip=%s limit=%s", pageAttrs["db.skip"], pageAttrs["db.limit"])
	}
}

func TestInstrumentedExecutor_RecordsFailure(t *testing.T) {
	recorder := setupTestTracer(t)
	boom := errors.New("connection reset")
	m := metrics.NewDocumentMetrics()

	var buf bytes.Buffer
	log, err := logger.NewZapLogger(logger.Config{Level: logger.DebugLevel, Format: logger.JSONFormat, Output: &buf})
	if err != nil {
		t.Fatalf("NewZapLogger: %v", err)
	}

	db, err := NewDatabase(&failingExecutor{MemoryExecutor: NewMemoryExecutor(), err: boom},
		WithMetrics(m), WithLogger(log))
	if err != nil {
		t.Fatalf("NewDatabase: %v", err)
	}
	if _, err := db.Collection("users").Query().All(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status().Code)
	}

	if got := testutil.CollectAndCount(m.Collectors()[0]); got != 1 {
		t.Errorf("expected 1 counter series, got %d", got)
	}
	if !strings.Contains(buf.String(), "document operation failed") {
		t.Errorf("expected failure log entry, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"collection":"users"`) {
		t.Errorf("expected collection field in log, got %q", buf.String())
	}
}

func TestInstrumentedExecutor_SystemFallback(t *testing.T) {
	if got := systemOf(&failingExecutor{MemoryExecutor: NewMemoryExecutor()}); got != SystemMemory {
		t.Errorf("expected promoted System() %q, got %q", SystemMemory, got)
	}
}
