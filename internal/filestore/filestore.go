// Package filestore provides the file-storage capability pipelines use to
// validate and read uploaded files.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileStore resolves uploaded file references.
type FileStore interface {
	// Exists reports whether the file can be opened.
	Exists(ctx context.Context, path string) (bool, error)

	// Open returns the file contents for reading.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// Local serves files from a root directory on the local filesystem.
// Paths are interpreted relative to the root; escaping the root is an
// error.
type Local struct {
	root string
}

// NewLocal creates a Local store rooted at dir, creating it if absent.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve filestore root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create filestore root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// Exists reports whether the file is present under the root.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %q: %w", path, err)
	}
	return !info.IsDir(), nil
}

// Open opens the file for reading.
func (l *Local) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open %q: %w", path, err)
	}
	return f, nil
}

// Write stores content under the root and returns the relative path.
// Used by the upload surface; pipelines only read.
func (l *Local) Write(_ context.Context, path string, r io.Reader) (string, error) {
	full, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create parent for %q: %w", path, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create %q: %w", path, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, nil
}

func (l *Local) resolve(path string) (string, error) {
	full := filepath.Join(l.root, filepath.Clean("/"+path))
	if full != l.root && !strings.HasPrefix(full, l.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes filestore root", path)
	}
	return full, nil
}
