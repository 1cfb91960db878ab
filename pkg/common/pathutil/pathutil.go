// Package pathutil keeps archive and backup files inside their directories.
package pathutil

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrAbsolutePath  = errors.New("pathutil: absolute paths not allowed")
	ErrPathTraversal = errors.New("pathutil: path traversal not allowed")
	ErrOutsideBase   = errors.New("pathutil: path outside base directory")
)

// SafePath joins filename onto baseDir, refusing any result that would
// escape baseDir.
func SafePath(baseDir, filename string) (string, error) {
	if filepath.IsAbs(filename) {
		return "", fmt.Errorf("%w: %s", ErrAbsolutePath, filename)
	}
	if strings.Contains(filename, "..") {
		return "", fmt.Errorf("%w: %s", ErrPathTraversal, filename)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("pathutil: resolve %s: %w", baseDir, err)
	}
	full := filepath.Join(absBase, filepath.Clean(filename))

	// Trailing separator so /foo/bar does not match /foo/barbaz.
	prefix := absBase
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	if full != absBase && !strings.HasPrefix(full, prefix) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, filename)
	}
	return full, nil
}

// ValidateFilePath rejects configured paths that climb out of their
// directory.
func ValidateFilePath(path string) error {
	for _, part := range strings.Split(filepath.ToSlash(filepath.Clean(path)), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %s", ErrPathTraversal, path)
		}
	}
	return nil
}
