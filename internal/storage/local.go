package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// LocalStorage keeps archived exports under a directory on disk.
type LocalStorage struct {
	baseDir string
	baseURL string
}

func NewLocalStorage(baseDir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	slog.Info("local export archive ready", "dir", baseDir)
	return &LocalStorage{baseDir: baseDir, baseURL: baseURL}, nil
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

// UploadFile streams content to a temporary file next to its final path and
// renames it into place, so readers never see a partial export.
func (s *LocalStorage) UploadFile(ctx context.Context, filename string, content io.Reader, contentType string) (*UploadResult, error) {
	key := generateKey(filename, time.Now())
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, content)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("failed to move %s into place: %w", key, err)
	}

	slog.Info("export archived locally", "key", key, "size", n, "content_type", contentType)
	return &UploadResult{Key: key, URL: archiveURL(s.baseURL, key)}, nil
}

// GetFile opens an archived export. Missing files wrap fs.ErrNotExist.
func (s *LocalStorage) GetFile(ctx context.Context, key string) (io.ReadCloser, string, error) {
	if !validKey(key) {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	p := s.path(key)

	mt, err := mimetype.DetectFile(p)
	if err != nil {
		return nil, "", fmt.Errorf("archived export %s: %w", key, err)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, "", fmt.Errorf("archived export %s: %w", key, err)
	}
	slog.Debug("archived export opened", "key", key, "content_type", mt.String())
	return f, mt.String(), nil
}
