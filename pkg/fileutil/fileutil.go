package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rohmanhakim/nextmuni/pkg/failure"
)

// EnsureParentDir creates the directory that will hold path, if missing.
// In-memory sqlite paths (":memory:") and bare file names need no directory.
func EnsureParentDir(path string) failure.ClassifiedError {
	dir := filepath.Dir(path)
	if path == ":memory:" || dir == "." || dir == "" {
		return nil
	}
	return EnsureDir(dir)
}

// EnsureDir check if a given directory plus the following path exist, then create one if not
func EnsureDir(dir string, path ...string) failure.ClassifiedError {
	targetPath := []string{dir}
	targetPath = append(targetPath, path...)

	if err := os.MkdirAll(filepath.Join(targetPath...), 0755); err != nil {
		return &FileError{
			Message:   fmt.Sprintf("%v", err),
			Retryable: false,
			Cause:     ErrCausePathError,
		}
	}
	return nil
}
