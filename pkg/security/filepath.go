// Package security validates operator-supplied file paths.
package security

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
)

var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrInvalidPath   = errors.New("invalid file path")
)

// ValidateFilePath rejects empty paths and paths with ".." segments. When
// baseDir is set the path must also resolve inside it.
func ValidateFilePath(path, baseDir string) error {
	if strings.TrimSpace(path) == "" {
		return ErrInvalidPath
	}
	if slices.Contains(strings.Split(filepath.ToSlash(path), "/"), "..") {
		return ErrPathTraversal
	}
	if baseDir == "" {
		return nil
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrPathTraversal
	}
	return nil
}
