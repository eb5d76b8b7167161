package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no artifact exists at the path
var ErrNotFound = errors.New("artifact not found")

// Adapter defines the interface for artifact storage backends.
// Paths are slash separated and relative to the adapter root.
type Adapter interface {
	// Put stores data at the given path
	Put(ctx context.Context, path string, data io.Reader) error

	// Get retrieves data from the given path
	Get(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes data at the given path
	Delete(ctx context.Context, path string) error

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)

	// List returns paths matching the given prefix
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleans up any resources
	Close() error
}

// ReadAll reads a whole artifact into memory
func ReadAll(ctx context.Context, a Adapter, path string) ([]byte, error) {
	r, err := a.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
