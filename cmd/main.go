package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fedutinova/minedash/internal/access"
	"github.com/fedutinova/minedash/internal/auth"
	appconfig "github.com/fedutinova/minedash/internal/config"
	"github.com/fedutinova/minedash/internal/database"
	"github.com/fedutinova/minedash/internal/dataset"
	"github.com/fedutinova/minedash/internal/memq"
	"github.com/fedutinova/minedash/internal/queue"
	"github.com/fedutinova/minedash/internal/redis"
	"github.com/fedutinova/minedash/internal/repository"
	"github.com/fedutinova/minedash/internal/server"
	"github.com/fedutinova/minedash/internal/storage"
	httpapi "github.com/fedutinova/minedash/internal/transport/http"
	"github.com/fedutinova/minedash/internal/workers"
)

func main() {
	cfg := appconfig.Load()
	setupLogger(cfg)
	slog.Info("starting minedash", "addr", cfg.HTTPAddr, "data_dir", cfg.DataDir, "role_source", cfg.RoleSource)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	files := dataset.NewSource(cfg.DataDir)
	store := dataset.LoadStore(files)

	var (
		identities auth.IdentitySource = files
		db         *database.DB
	)
	if cfg.RoleSource == appconfig.RoleSourcePostgres {
		var err error
		db, err = database.NewDB(ctx, cfg.DatabaseURL, int32(cfg.DBMaxConns))
		if err != nil {
			slog.Error("failed to connect to database", "err", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := repository.New(db)
		if err := seedRepository(ctx, repo, files); err != nil {
			slog.Error("failed to prepare role tables", "err", err)
			os.Exit(1)
		}
		identities = repo
	}

	overrides, errs := access.ParseOverrides(cfg.RoleOverrides)
	for _, err := range errs {
		slog.Warn("ignoring role override", "err", err)
	}
	catalog := access.LoadCatalog(ctx, identities, overrides)
	gate := access.NewGate(catalog)

	directory, err := auth.LoadDirectory(ctx, identities)
	if err != nil {
		slog.Error("user directory unavailable, logins will fail", "err", err)
		directory = auth.NewDirectory(nil, nil)
	}
	slog.Info("user directory loaded", "users", directory.Len())

	var (
		revoker      auth.Revoker = auth.NewMemoryRevoker()
		redisService *redis.Service
	)
	if cfg.RedisURL != "" {
		redisService, err = redis.New(cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to Redis", "err", err)
			os.Exit(1)
		}
		defer redisService.Close()
		revoker = redisService
	}

	storageService, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize storage", "err", err)
		os.Exit(1)
	}
	slog.Info("storage initialized", "type", storage.GetStorageType(cfg))

	q, err := newQueue(ctx, cfg, redisService)
	if err != nil {
		slog.Error("failed to initialize job queue", "err", err)
		os.Exit(1)
	}
	if storageService != nil {
		workers.NewExportHandler(store, storageService).Register(ctx, q, cfg.QueueWorkers)
	}

	handlers := &httpapi.Handlers{
		Gate:      gate,
		Directory: directory,
		Revoker:   revoker,
		Store:     store,
		Insights:  dataset.NewInsights(),
		Q:         q,
		Storage:   storageService,
		DB:        db,
		Redis:     redisService,
		Config:    cfg,
	}
	r := server.NewRouter(handlers)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range ch {
		if sig != syscall.SIGHUP {
			break
		}
		reload(ctx, identities, catalog, directory)
	}
	slog.Info("shutting down")

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = srv.Shutdown(shCtx)
	if err := q.Close(); err != nil {
		slog.Warn("queue close", "err", err)
	}
	cancel()
}

func setupLogger(cfg appconfig.Config) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var h slog.Handler
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

// newQueue picks the in-process queue or, with QUEUE_MODE=redis, a Redis
// stream shared by every replica.
func newQueue(ctx context.Context, cfg appconfig.Config, rs *redis.Service) (memq.JobQueue, error) {
	if cfg.QueueMode != appconfig.QueueModeRedis || rs == nil {
		slog.Info("job queue initialized", "mode", appconfig.QueueModeMemory, "buffer", cfg.QueueBuf)
		return memq.NewMemoryQueue(cfg.QueueBuf, cfg.JobMaxDuration), nil
	}
	qcfg := queue.DefaultConfig()
	qcfg.Stream = cfg.QueueStream
	qcfg.MaxJobTime = cfg.JobMaxDuration
	q, err := queue.NewStreamQueue(ctx, rs.Client(), qcfg)
	if err != nil {
		return nil, err
	}
	slog.Info("job queue initialized", "mode", appconfig.QueueModeRedis, "stream", qcfg.Stream)
	return q, nil
}

// seedRepository creates the role tables and, on an empty database, copies
// roles.csv and users.csv into them.
func seedRepository(ctx context.Context, repo *repository.Repository, files *dataset.Source) error {
	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	n, err := repo.CountRoles(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	roles, err := files.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}
	users, err := files.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed users: %w", err)
	}
	if err := repo.Import(ctx, roles, users); err != nil {
		return err
	}
	slog.Info("seeded role tables from csv", "roles", len(roles), "users", len(users))
	return nil
}

// reload re-reads roles and users on SIGHUP. A failed catalog reload leaves
// the catalog empty; a failed directory reload keeps the previous accounts.
func reload(ctx context.Context, src auth.IdentitySource, catalog *access.Catalog, directory *auth.Directory) {
	if err := catalog.Reload(ctx, src); err != nil {
		slog.Error("role catalog reload failed, denying all capabilities", "err", err)
	}
	if err := directory.Reload(ctx, src); err != nil {
		slog.Error("user directory reload failed", "err", err)
		return
	}
	slog.Info("roles and users reloaded", "roles", catalog.Len(), "users", directory.Len())
}
