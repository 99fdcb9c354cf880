package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr         string
	CORSOrigins      []string
	DataDir          string
	RoleSource       string
	DatabaseURL      string
	DBMaxConns       int
	RedisURL         string
	SessionSecret    string
	SessionIssuer    string
	SessionTTL       time.Duration
	CookieSecure     bool
	RoleOverrides    string
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	StorageMode      string
	S3Bucket         string
	S3Endpoint       string
	S3Region         string
	AWSAccessKey     string
	AWSSecretKey     string
	S3ForcePathStyle bool
	LocalStorageDir  string
	ArchiveBaseURL   string
	QueueMode        string
	QueueStream      string
	QueueWorkers     int
	QueueBuf         int
	JobMaxDuration   time.Duration
	LogLevel         string
	LogFormat        string
}

const (
	RoleSourceCSV      = "csv"
	RoleSourcePostgres = "postgres"

	QueueModeMemory = "memory"
	QueueModeRedis  = "redis"
)

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
		slog.Warn("bad int env, using default", "key", key, "value", v)
	}
	return def
}

func getList(key, def string) []string {
	var out []string
	for _, v := range strings.Split(getenv(key, def), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if v == "true" || v == "1" {
			return true
		}
		if v == "false" || v == "0" {
			return false
		}
		slog.Warn("bad bool env, using default", "key", key, "value", v)
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		slog.Warn("bad duration env, using default", "key", key, "value", v)
	}
	return def
}

// envFileNames are loaded in order; values already in the environment win.
var envFileNames = []string{".env.local", ".env"}

// loadEnvFiles loads the env files of the nearest directory, starting at the
// working directory and walking up at most three parents, that has any.
func loadEnvFiles() {
	dir, err := os.Getwd()
	if err != nil {
		slog.Debug("failed to get current directory", "error", err)
		return
	}
	for depth := 0; depth <= 3; depth++ {
		if found := existingEnvFiles(dir); len(found) > 0 {
			if err := godotenv.Load(found...); err != nil {
				slog.Debug("failed to load environment files", "dir", dir, "error", err)
				return
			}
			slog.Debug("loaded environment files", "files", found)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	slog.Debug("no .env files found, using system environment variables only")
}

func existingEnvFiles(dir string) []string {
	var found []string
	for _, name := range envFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			found = append(found, p)
		}
	}
	return found
}

func Load() Config {
	loadEnvFiles()
	cfg := Config{
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:      getList("CORS_ALLOWED_ORIGINS", "http://localhost:*"),
		DataDir:          getenv("DATA_DIR", "./data"),
		RoleSource:       strings.ToLower(getenv("ROLE_SOURCE", RoleSourceCSV)),
		DatabaseURL:      getenv("DATABASE_URL", ""),
		DBMaxConns:       mustInt("DB_MAX_CONNS", 4),
		RedisURL:         getenv("REDIS_URL", ""),
		SessionSecret:    getenv("SESSION_SECRET", "dev-secret-change-me"),
		SessionIssuer:    getenv("SESSION_ISSUER", "minedash"),
		SessionTTL:       mustDuration("SESSION_TTL", 12*time.Hour),
		CookieSecure:     getBool("COOKIE_SECURE", false),
		RoleOverrides:    getenv("ROLE_OVERRIDES", "Researcher=map,export"),
		LoginRateLimit:   mustInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:  mustDuration("LOGIN_RATE_WINDOW", time.Minute),
		StorageMode:      strings.ToLower(getenv("STORAGE_MODE", "none")),
		S3Bucket:         getenv("S3_BUCKET", "minedash-exports"),
		S3Endpoint:       getenv("S3_ENDPOINT", "http://localhost:4566"),
		S3Region:         getenv("S3_REGION", "us-east-1"),
		AWSAccessKey:     getenv("AWS_ACCESS_KEY_ID", "test"),
		AWSSecretKey:     getenv("AWS_SECRET_ACCESS_KEY", "test"),
		S3ForcePathStyle: getBool("S3_FORCE_PATH_STYLE", true),
		LocalStorageDir:  getenv("LOCAL_STORAGE_DIR", "./exports"),
		ArchiveBaseURL:   getenv("ARCHIVE_BASE_URL", "http://localhost:8080/archive"),
		QueueMode:        strings.ToLower(getenv("QUEUE_MODE", QueueModeMemory)),
		QueueStream:      getenv("QUEUE_STREAM", "minedash:exports"),
		QueueWorkers:     mustInt("QUEUE_WORKERS", 2),
		QueueBuf:         mustInt("QUEUE_BUFFER", 128),
		JobMaxDuration:   mustDuration("JOB_MAX_DURATION", 30*time.Second),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		LogFormat:        strings.ToLower(getenv("LOG_FORMAT", "text")),
	}
	if cfg.RoleSource != RoleSourceCSV && cfg.RoleSource != RoleSourcePostgres {
		slog.Warn("unknown ROLE_SOURCE, using csv", "value", cfg.RoleSource)
		cfg.RoleSource = RoleSourceCSV
	}
	if cfg.QueueMode == QueueModeRedis && cfg.RedisURL == "" {
		slog.Warn("QUEUE_MODE=redis needs REDIS_URL, using memory queue")
		cfg.QueueMode = QueueModeMemory
	} else if cfg.QueueMode != QueueModeRedis && cfg.QueueMode != QueueModeMemory {
		slog.Warn("unknown QUEUE_MODE, using memory", "value", cfg.QueueMode)
		cfg.QueueMode = QueueModeMemory
	}
	if cfg.SessionSecret == "dev-secret-change-me" {
		slog.Warn("SESSION_SECRET is the development default")
	}
	return cfg
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
