package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDocumentMetrics_Record(t *testing.T) {
	tests := []struct {
		name       string
		collection string
		operation  string
		err        error
		wantStatus string
	}{
		{name: "successful find", collection: "users", operation: "find", wantStatus: StatusOK},
		{name: "failed insert", collection: "users", operation: "insert", err: errors.New("boom"), wantStatus: StatusError},
		{name: "successful remove", collection: "orders", operation: "remove", wantStatus: StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewDocumentMetrics()
			m.Record(tt.collection, tt.operation, tt.err, 25*time.Millisecond)

			got := testutil.ToFloat64(m.operationsTotal.WithLabelValues(tt.collection, tt.operation, tt.wantStatus))
			if got != 1 {
				t.Errorf("expected counter 1 for status %s, got %v", tt.wantStatus, got)
			}
			if n := testutil.CollectAndCount(m.operationDuration); n != 1 {
				t.Errorf("expected 1 histogram series, got %d", n)
			}
		})
	}
}

func TestDocumentMetrics_NilIsNoop(t *testing.T) {
	var m *DocumentMetrics
	m.Record("users", "find", nil, time.Second)
}

func TestDocumentMetrics_Concurrency(t *testing.T) {
	m := NewDocumentMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Record("users", "find", nil, time.Millisecond)
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(m.operationsTotal.WithLabelValues("users", "find", StatusOK)); got != 50 {
		t.Errorf("expected 50 operations, got %v", got)
	}
}
