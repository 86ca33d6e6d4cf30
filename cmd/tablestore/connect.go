package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sethvargo/go-retry"

	store "github.com/likearthian/tablestore"
	"github.com/likearthian/tablestore/internal/config"
	"github.com/likearthian/tablestore/internal/logger"
)

// openStore connects to the configured backend. Connection and timeout failures are
// retried with exponential backoff; anything else fails at once.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	log := logger.FromContext(ctx)
	opts := []store.Option{
		store.WithLogger(log),
		store.WithTimeout(c.Timeout),
		store.WithNamespace(c.Namespace),
	}

	var open func(ctx context.Context) (store.Store, error)
	switch c.Backend {
	case config.BackendMongo:
		if c.Mongo.URI == "" {
			return nil, fmt.Errorf("no MongoDB URI: set MONGO_TEST_URL or --mongo-uri")
		}
		open = func(ctx context.Context) (store.Store, error) {
			return store.OpenMongo(ctx, c.Mongo.URI, c.Mongo.Database, opts...)
		}
	default:
		dsn := c.DSN()
		if dsn == "" {
			return nil, fmt.Errorf("no database URL: set DATABASE_URL_TEST or --db-url")
		}
		open = func(ctx context.Context) (store.Store, error) {
			return store.Open(ctx, dsn, opts...)
		}
	}

	var s store.Store
	backoff := retry.WithMaxRetries(c.Retry.MaxAttempts-1, retry.NewExponential(c.Retry.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		opened, err := open(ctx)
		if err == nil {
			s = opened
			return nil
		}

		if errors.Is(err, store.ErrConnection) || errors.Is(err, store.ErrTimeout) {
			log.Warn("connection attempt failed", "backend", c.Backend, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	return s, nil
}
