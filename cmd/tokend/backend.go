package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/revocation"
	"github.com/MrEthical07/goToken/userstore"
)

// backends holds the storage handles selected by serverConfig.
type backends struct {
	// store is nil for the redis backend; the builder creates the Redis
	// store from the client.
	store   revocation.Store
	redis   redis.UniversalClient
	users   userstore.Store
	closers []func() error
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	return errors.Join(errs...)
}

func openBackends(ctx context.Context, c serverConfig, engineCfg goToken.Config, logger *slog.Logger) (*backends, error) {
	hasher, err := engineCfg.Password.NewHasher()
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}

	b := &backends{}
	if c.RedisAddr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{c.RedisAddr}})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%w: %v", goToken.ErrRevocationUnavailable, err)
		}
		b.redis = client
		b.closers = append(b.closers, client.Close)
	}

	switch c.Backend {
	case "memory":
		b.store = revocation.NewMemoryStore()
	case "redis":
		// built from b.redis by the engine builder
	case "postgres":
		db, err := revocation.OpenPostgres(ctx, c.PostgresDSN)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.closers = append(b.closers, db.Close)
		if err := revocation.RunMigrations(ctx, db); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.store = revocation.NewPostgresStore(db)
	}
	logger.Info("revocation backend ready", "backend", c.Backend)

	switch c.Users {
	case "memory":
		b.users = userstore.NewMemoryProvider(hasher)
	case "postgres":
		db, err := userstore.OpenGorm(c.PostgresDSN)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			b.closers = append(b.closers, sqlDB.Close)
		}
		gp := userstore.NewGormProvider(db, hasher)
		if err := gp.AutoMigrate(ctx); err != nil {
			_ = b.Close()
			return nil, err
		}
		b.users = gp
	}
	logger.Info("user store ready", "users", c.Users)

	return b, nil
}
