package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"verigate/internal/exchange/models"
	"verigate/internal/exchange/store"
	"verigate/internal/platform/config"
	"verigate/internal/platform/database"
	"verigate/internal/platform/health"
	"verigate/internal/platform/redis"
)

// exchangeStore is what the service and the sweeper need from a backend.
type exchangeStore interface {
	Create(ctx context.Context, exchange *models.Exchange) error
	FindByID(ctx context.Context, id string) (*models.Exchange, error)
	UpdateIfState(ctx context.Context, id string, expected []models.State, patch models.Patch) (bool, error)
	ListExpirable(ctx context.Context, now time.Time, ttl time.Duration, limit int) ([]string, error)
}

type storeBackend struct {
	store  exchangeStore
	redis  *redis.Client // set only for the redis backend
	onTick func()
	close  func()
}

// openStore connects the backend selected by STORE_BACKEND and registers its
// readiness check.
func openStore(ctx context.Context, cfg config.Server, log *slog.Logger, h *health.Handler) (*storeBackend, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory, "":
		log.Info("using in-memory exchange store")
		return &storeBackend{store: store.NewInMemory(), onTick: func() {}, close: func() {}}, nil

	case config.StoreRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, fmt.Errorf("store backend %q requires REDIS_URL", cfg.StoreBackend)
		}
		h.RegisterCheck("redis", client.Health)
		log.Info("using redis exchange store")
		return &storeBackend{
			store:  store.NewRedis(client.Client),
			redis:  client,
			onTick: client.RecordPoolStats,
			close: func() {
				if err := client.Close(); err != nil {
					log.Warn("redis close failed", "error", err)
				}
			},
		}, nil

	case config.StorePostgres:
		pool, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if pool == nil {
			return nil, fmt.Errorf("store backend %q requires DATABASE_URL", cfg.StoreBackend)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close() //nolint:errcheck // best-effort cleanup on init failure
			return nil, err
		}
		h.RegisterCheck("postgres", pool.Health)
		log.Info("using postgres exchange store")
		return &storeBackend{
			store:  store.NewPostgres(pool.DB()),
			onTick: func() {},
			close: func() {
				if err := pool.Close(); err != nil {
					log.Warn("database close failed", "error", err)
				}
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
