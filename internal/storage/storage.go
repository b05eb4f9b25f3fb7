// Package storage opens the user and refresh token backends selected by
// configuration and hands them out as capability interfaces.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/userapi/backend/internal/auth"
	"github.com/userapi/backend/internal/cache"
	"github.com/userapi/backend/internal/config"
	"github.com/userapi/backend/internal/db"
	"github.com/userapi/backend/internal/docstore"
	apperrors "github.com/userapi/backend/internal/errors"
	"github.com/userapi/backend/internal/health"
	"github.com/userapi/backend/internal/logger"
	"github.com/userapi/backend/internal/memstore"
	"github.com/userapi/backend/internal/users"
)

// Backends holds the opened stores. Purger is nil when the token store
// expires records natively.
type Backends struct {
	Users  users.Store
	Tokens auth.TokenStore
	Purger auth.ExpiredPurger
	Checks map[string]health.CheckFunc

	closers []func(context.Context) error
}

// Close releases every connection in reverse opening order.
func (b *Backends) Close(ctx context.Context) error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// Open connects to the configured backends, retrying each connection up to
// cfg.ConnectRetries times, and prepares their schema.
func Open(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Backends, error) {
	log = log.WithComponent("storage")
	retry := apperrors.ConnectRetryConfig(cfg.ConnectRetries)
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn(ctx, "storage connection failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"wait":    wait.String(),
			"error":   err.Error(),
		})
	}
	b := &Backends{Checks: make(map[string]health.CheckFunc, 2)}

	var (
		mongoClient *docstore.Client
		pgDB        *db.DB
	)

	switch cfg.DBDriver {
	case config.DriverMongo:
		client, err := apperrors.RetryWithResult(ctx, retry, func(ctx context.Context) (*docstore.Client, error) {
			return docstore.Connect(ctx, cfg.MongoURI, cfg.DBName)
		})
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		if err := client.EnsureIndexes(ctx); err != nil {
			b.Close(ctx)
			return nil, err
		}
		mongoClient = client
		b.Users = client.Users()
		b.Checks["users"] = client.Ping
		log.Info(ctx, "connected to mongodb", map[string]interface{}{"database": cfg.DBName})

	case config.DriverPostgres:
		conn, err := apperrors.RetryWithResult(ctx, retry, func(ctx context.Context) (*db.DB, error) {
			return db.Open(ctx, cfg.PostgresDSN)
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return conn.Close() })
		if err := conn.Migrate(ctx); err != nil {
			b.Close(ctx)
			return nil, err
		}
		pgDB = conn
		b.Users = db.NewUserRepository(conn)
		b.Checks["users"] = conn.Ping
		log.Info(ctx, "connected to postgres")

	case config.DriverMemory:
		store := memstore.NewUserStore()
		b.Users = store
		b.Checks["users"] = store.Ping
		log.Warn(ctx, "using in-memory user storage; data is lost on restart")

	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	switch cfg.TokenStore {
	case config.DriverMongo:
		b.Tokens = mongoClient.Tokens(time.Now)
		b.Checks["tokens"] = mongoClient.Ping

	case config.DriverPostgres:
		repo := db.NewTokenRepository(pgDB, time.Now)
		b.Tokens = repo
		b.Purger = repo
		b.Checks["tokens"] = pgDB.Ping

	case config.DriverRedis:
		c, err := apperrors.RetryWithResult(ctx, retry, func(ctx context.Context) (*cache.Cache, error) {
			return cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		})
		if err != nil {
			b.Close(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		b.closers = append(b.closers, func(context.Context) error { return c.Close() })
		b.Tokens = c.Tokens(time.Now)
		b.Checks["tokens"] = c.Ping

	case config.DriverMemory:
		store := memstore.NewTokenStore(time.Now)
		b.Tokens = store
		b.Purger = store
		b.Checks["tokens"] = store.Ping

	default:
		b.Close(ctx)
		return nil, fmt.Errorf("unsupported TOKEN_STORE %q", cfg.TokenStore)
	}

	return b, nil
}
