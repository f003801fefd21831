package security

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestValidateFilePath(t *testing.T) {
	base := t.TempDir()
	tests := []struct {
		name    string
		path    string
		baseDir string
		wantErr error
	}{
		{name: "empty", path: "", wantErr: ErrInvalidPath},
		{name: "blank", path: "  ", wantErr: ErrInvalidPath},
		{name: "relative ok", path: "metrics/docquery.prom"},
		{name: "dot dot segment", path: "../etc/passwd", wantErr: ErrPathTraversal},
		{name: "dots inside a name are fine", path: "docquery..prom"},
		{name: "inside base", path: filepath.Join(base, "out.prom"), baseDir: base},
		{name: "sibling with shared prefix", path: base + "-other/out.prom", baseDir: base, wantErr: ErrPathTraversal},
		{name: "outside base", path: "/tmp/out.prom", baseDir: base, wantErr: ErrPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path, tt.baseDir)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
