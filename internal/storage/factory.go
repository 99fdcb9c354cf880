package storage

import (
	"context"
	"log/slog"

	appconfig "github.com/fedutinova/minedash/internal/config"
)

// NewStorage returns the archive backend selected by STORAGE_MODE, or nil
// when archiving is disabled.
func NewStorage(ctx context.Context, cfg appconfig.Config) (Storage, error) {
	switch cfg.StorageMode {
	case "s3", "aws", "localstack":
		return NewS3Storage(ctx, cfg)
	case "local", "filesystem":
		return NewLocalStorage(cfg.LocalStorageDir, cfg.ArchiveBaseURL)
	case "none", "":
		return nil, nil
	default:
		slog.Warn("unknown STORAGE_MODE, export archiving disabled", "mode", cfg.StorageMode)
		return nil, nil
	}
}

func GetStorageType(cfg appconfig.Config) string {
	switch cfg.StorageMode {
	case "s3", "aws", "localstack":
		if isLocalStack(cfg.S3Endpoint) {
			return "LocalStack S3"
		}
		return "AWS S3"
	case "local", "filesystem":
		return "Local Filesystem"
	default:
		return "Disabled"
	}
}
