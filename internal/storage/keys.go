package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const keyPrefix = "exports"

// generateKey builds exports/YYYY/MM/DD/<name>_<short id><ext>.
func generateKey(filename string, now time.Time) string {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filepath.Base(filename), ext)
	base = strings.NewReplacer(" ", "_", "/", "_").Replace(base)

	return fmt.Sprintf("%s/%s/%s_%s%s", keyPrefix, now.UTC().Format("2006/01/02"), base, uuid.NewString()[:8], ext)
}

// validKey accepts only keys this package could have generated.
func validKey(key string) bool {
	if !strings.HasPrefix(key, keyPrefix+"/") {
		return false
	}
	return path.Clean(key) == key && !strings.Contains(key, "..")
}

func archiveURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + key
}

func isLocalStack(endpoint string) bool {
	return endpoint != "" && (strings.Contains(endpoint, "localstack") || strings.Contains(endpoint, "4566"))
}
