package storage

import (
	"context"

	"github.com/avivheldman/WorkFlow/internal/config"
	"github.com/avivheldman/WorkFlow/pkg/storage"
)

// Logger is the logging subset InitStore needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// InitStore opens the configured backend and probes it once. When the backend
// is unreachable the process keeps running on an in-memory store. The second
// return value names the backend actually in use.
func InitStore(ctx context.Context, cfg *config.Config, logger Logger) (storage.Store, string) {
	if cfg.Store.Backend == config.BackendMemory {
		logger.Infof("Using in-memory workflow store")
		return storage.NewMemoryStore(), config.BackendMemory
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.Store.ProbeTimeout)
	defer cancel()

	var (
		store storage.Store
		err   error
	)
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		store, err = openPostgres(probeCtx, cfg)
	default:
		store, err = openRedis(probeCtx, cfg)
	}
	if err != nil {
		logger.Warnf("Workflow store '%s' unavailable, falling back to in-memory store: %v", cfg.Store.Backend, err)
		return storage.NewMemoryStore(), config.BackendMemory
	}
	logger.Infof("Connected to %s workflow store", cfg.Store.Backend)
	return store, cfg.Store.Backend
}

func openRedis(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	client, err := NewRedisClient(cfg.Redis.URL, cfg.RedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}
	store := NewRedisStore(client, cfg.Redis.KeyPrefix)
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	store, err := NewPostgresStore(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	if err := Migrate(cfg.Postgres.DSN); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}
