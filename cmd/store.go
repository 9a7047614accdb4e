package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"stokmanager/internal/config"
	"stokmanager/internal/infrastructure/database/postgres"
	natsstore "stokmanager/internal/infrastructure/kv/nats"
	redisstore "stokmanager/internal/infrastructure/kv/redis"
	"stokmanager/internal/infrastructure/memory"
	"stokmanager/internal/logger"
	"stokmanager/internal/store"
)

// openStore connects the backend selected by STORE_DRIVER.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.Store.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory store, data is lost on restart")
		s = memory.NewStore()
	case config.DriverPostgres:
		var db *postgres.DB
		db, err = postgres.NewDB(ctx, cfg)
		if err == nil {
			s = postgres.NewNodeStore(db)
		}
	case config.DriverRedis:
		s = redisstore.NewStore(cfg.Store.Redis)
	case config.DriverNATS:
		s, err = natsstore.NewStore(ctx, cfg.Store.NATS)
	default:
		err = fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("store %s is not reachable: %w", cfg.Store.Driver, err)
	}

	logger.Info("Store connected", zap.String("driver", cfg.Store.Driver))
	return s, nil
}
