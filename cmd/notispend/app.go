package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"

	"github.com/ArionMiles/notispend/internal/consumer"
	"github.com/ArionMiles/notispend/pkg/api"
	"github.com/ArionMiles/notispend/pkg/config"
	"github.com/ArionMiles/notispend/pkg/logging"
	"github.com/ArionMiles/notispend/pkg/store/memory"
	"github.com/ArionMiles/notispend/pkg/store/postgres"
	"github.com/ArionMiles/notispend/pkg/store/sqlite"
)

// retryDelay is the base delay between startup connection attempts.
var retryDelay = 2 * time.Second

type app struct {
	cfg    config.Config
	logger *slog.Logger
}

// newApp loads and validates the configuration and installs the logger.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.Setup(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &app{cfg: cfg, logger: logger}, nil
}

// connect calls dial until it succeeds or attempts run out.
func connect[T any](ctx context.Context, attempts uint, logger *slog.Logger, what string, dial func() (T, error)) (T, error) {
	var out T
	err := retry.Do(
		func() error {
			v, err := dial()
			if err != nil {
				return err
			}
			out = v
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("connection attempt failed", "target", what, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return out, fmt.Errorf("connecting to %s: %w", what, err)
	}
	return out, nil
}

// openStore opens the configured store.
func (a *app) openStore(ctx context.Context) (api.Store, error) {
	logger := a.logger.With("component", "store", "store", a.cfg.Store)

	switch a.cfg.Store {
	case config.StorePostgres:
		return connect(ctx, a.cfg.ConnectAttempts, logger, "postgres", func() (api.Store, error) {
			return postgres.New(ctx, a.cfg.Postgres(), logger)
		})
	case config.StoreSQLite:
		s, err := sqlite.Open(ctx, a.cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store %q", a.cfg.Store)
	}
}

// dialConsumer connects the queue consumer for ing.
func (a *app) dialConsumer(ctx context.Context, ing consumer.Ingester) (*consumer.Consumer, error) {
	if a.cfg.AMQPURL == "" {
		return nil, errors.New("AMQP_URL is required to consume notifications")
	}

	cfg := consumer.Config{URL: a.cfg.AMQPURL, Queue: a.cfg.AMQPQueue}
	return connect(ctx, a.cfg.ConnectAttempts, a.logger, "amqp", func() (*consumer.Consumer, error) {
		return consumer.Dial(cfg, ing, a.logger)
	})
}
