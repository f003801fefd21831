package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNanoID(t *testing.T) {
	next := NanoID()
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id, err := next()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(id) != DefaultSize {
			t.Fatalf("expected %d characters, got %q", DefaultSize, id)
		}
		for _, r := range id {
			if !strings.ContainsRune(Alphabet, r) {
				t.Fatalf("unexpected symbol %q in %q", r, id)
			}
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q after %d draws", id, i)
		}
		seen[id] = struct{}{}
	}
}

func TestNanoIDSize_Invalid(t *testing.T) {
	if _, err := NanoIDSize(0)(); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func TestUUID(t *testing.T) {
	id, err := UUID()()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("invalid uuid %q: %v", id, err)
	}
	if parsed.Version() != 4 {
		t.Errorf("expected version 4, got %d", parsed.Version())
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		kind    string
		wantLen int
		wantErr bool
	}{
		{kind: "", wantLen: DefaultSize},
		{kind: "nanoid", wantLen: DefaultSize},
		{kind: "UUID", wantLen: 36},
		{kind: "snowflake", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			g, err := New(tt.kind)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New(%q) error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			id, err := g()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(id) != tt.wantLen {
				t.Errorf("expected length %d, got %q", tt.wantLen, id)
			}
		})
	}
}

func TestProperty_NanoIDSize(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ids have the requested length", prop.ForAll(
		func(size int) bool {
			id, err := NanoIDSize(size)()
			return err == nil && len(id) == size
		},
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
