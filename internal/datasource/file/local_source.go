// Package file implements a local filesystem-backed data source for payment
// exports.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"magload/internal/datasource"
)

var (
	// ErrNotFound is returned when the input path does not exist. The
	// underlying os.ErrNotExist is still reachable through errors.Is.
	ErrNotFound = datasource.ErrNotFound

	// ErrEmpty is returned when the input file exists but holds no bytes.
	ErrEmpty = datasource.ErrEmpty
)

// Local is a filesystem data source bound to one path.
type Local struct{ path string }

// NewLocal returns a Local source for path.
func NewLocal(path string) *Local { return &Local{path: path} }

// Path returns the configured path.
func (l *Local) Path() string { return l.path }

// Open opens the configured path for reading.
//
// Behavior:
//   - A context that is already done short-circuits with ctx.Err().
//   - A missing path yields an error matching both ErrNotFound and
//     os.ErrNotExist.
//   - A zero-byte file yields ErrEmpty; the file is closed before returning.
//   - Directories are rejected.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("open %s: %w", l.path, errors.Join(ErrNotFound, err))
		}
		return nil, fmt.Errorf("open %s: %w", l.path, err)
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", l.path, err)
	}
	if st.IsDir() {
		f.Close()
		return nil, fmt.Errorf("open %s: is a directory", l.path)
	}
	if st.Size() == 0 {
		f.Close()
		return nil, fmt.Errorf("open %s: %w", l.path, ErrEmpty)
	}
	return f, nil
}
