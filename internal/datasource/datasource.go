// Package datasource declares where raw input bytes come from.
package datasource

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotFound is returned when the input does not exist.
	ErrNotFound = errors.New("input file not found")

	// ErrEmpty is returned when the input exists but holds no bytes.
	ErrEmpty = errors.New("input file is empty")
)

// Source opens the raw input for one run. Implementations wrap ErrNotFound
// and ErrEmpty so callers can tell the two apart.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
