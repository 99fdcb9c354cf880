package storage

import (
	"context"
	"errors"
	"io"
)

// Storage archives generated export files.
type Storage interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*UploadResult, error)
	GetFile(ctx context.Context, key string) (io.ReadCloser, string, error)
}

type UploadResult struct {
	Key string
	URL string
}

var ErrInvalidKey = errors.New("invalid storage key")
