// Package app opens the storage backend selected by configuration. It is
// shared by the api, the fulfillment worker and ledgerctl.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	"github.com/ariefcatur/cyberphone-ledger/internal/config"
	"github.com/ariefcatur/cyberphone-ledger/internal/kvstore"
	"github.com/ariefcatur/cyberphone-ledger/internal/postgres"
	"github.com/ariefcatur/cyberphone-ledger/internal/redisx"
)

// Backend is an open commerce.Repository plus the connections behind it.
// DB and Redis are nil when the selected backend does not use them.
type Backend struct {
	Store commerce.Repository
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// Open connects the backend named by cfg.StoreBackend. The postgres backend
// also migrates the schema. withRedis asks for a Redis client even when the
// store itself does not live in Redis; a failure there is logged and leaves
// Redis nil.
func Open(ctx context.Context, cfg config.Config, log *slog.Logger, withRedis bool) (*Backend, error) {
	b := &Backend{}
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("postgres migrate: %w", err)
		}
		b.DB = db
		b.Store = postgres.NewStore(db, cfg.TxMaxRetries, log)
	case config.BackendRedis:
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("redis connect: %w", err)
		}
		b.Redis = rdb
		b.Store = kvstore.New(redisx.NewKVBackend(rdb, cfg.TxMaxRetries), log)
	case config.BackendMemory:
		b.Store = kvstore.New(kvstore.NewMemory(), log)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	if withRedis && b.Redis == nil && cfg.StoreBackend != config.BackendMemory {
		rdb, err := redisx.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable", "addr", cfg.RedisAddr, "error", err)
		} else {
			b.Redis = rdb
		}
	}
	log.Info("store ready", "backend", cfg.StoreBackend, "redis", b.Redis != nil)
	return b, nil
}

func (b *Backend) Close() {
	if b.Redis != nil {
		_ = b.Redis.Close()
	}
	if b.DB != nil {
		b.DB.Close()
	}
}
