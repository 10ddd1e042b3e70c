package storage

import (
	"context"
	"errors"
	"io"
)

var ErrInvalidPath = errors.New("invalid file path")

// FileStorage keeps generated documents for operators to fetch later.
type FileStorage interface {
	// Upload writes file under path and returns the stored key.
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// GetURL returns the public URL of a stored key.
	GetURL(ctx context.Context, path string) (string, error)
}
