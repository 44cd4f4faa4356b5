package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/parley/state"
	"github.com/xraph/parley/state/memory"
	"github.com/xraph/parley/state/postgres"
	"github.com/xraph/parley/state/redis"
	"github.com/xraph/parley/state/sqlite"
)

// openStore opens the configured state store. The returned func releases
// it together with any client the store does not own.
func openStore(ctx context.Context, cfg StateConfig, logger *slog.Logger) (state.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		s := memory.New()
		return s, func() { _ = s.Close() }, nil

	case "sqlite":
		path := cfg.DSN
		if path == "" {
			path = "parley.db"
		}
		s, err := sqlite.Open(ctx, path, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	case "redis":
		opts, err := goredis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("state.dsn: %w", err)
		}
		client := goredis.NewClient(opts)
		s := redis.New(client, redis.WithLogger(logger))
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, func() {
			_ = s.Close()
			_ = client.Close()
		}, nil

	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown state driver %q", cfg.Driver)
	}
}
