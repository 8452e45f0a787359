package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/roach88/ordinal/internal/cache"
	"github.com/roach88/ordinal/internal/config"
	"github.com/roach88/ordinal/internal/engine"
	"github.com/roach88/ordinal/internal/lock"
	"github.com/roach88/ordinal/internal/metrics"
	"github.com/roach88/ordinal/internal/notify"
	"github.com/roach88/ordinal/internal/order"
	"github.com/roach88/ordinal/internal/store"
)

// itemStore is what the CLI needs from a storage backend. Implemented by
// store.Store (SQLite) and store.PostgresStore.
type itemStore interface {
	engine.PositionStore
	engine.MaxPositioner
	AppendItem(ctx context.Context, item order.Item) (order.Item, error)
	GetItem(ctx context.Context, itemID string) (order.Item, error)
	DeleteItem(ctx context.Context, itemID string) error
	Close() error
}

// app is the wired runtime of one command invocation.
type app struct {
	cfg      config.Config
	store    itemStore
	redis    *redis.Client
	cache    *cache.RedisCache // nil without redis_url
	coord    *engine.Coordinator
	registry *prometheus.Registry
	logger   *slog.Logger
	out      *OutputFormatter
	metrics  bool
}

// openApp loads config and connects the store, and Redis when configured.
func openApp(ctx context.Context, opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	a := &app{
		cfg:      cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger,
		metrics:  opts.Metrics,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}

	if cfg.PostgresURL != "" {
		logger.Debug("opening postgres store")
		a.store, err = store.OpenPostgres(ctx, cfg.PostgresURL)
	} else {
		logger.Debug("opening sqlite store", "path", cfg.DB)
		a.store, err = store.Open(cfg.DB)
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}

	coordOpts := []engine.CoordinatorOption{
		engine.WithLogger(logger),
		engine.WithBatchThreshold(cfg.BatchThreshold),
		engine.WithMaxConcurrency(cfg.MaxConcurrency),
		engine.WithOffsetMargin(cfg.OffsetMargin),
		engine.WithOpIDGenerator(engine.UUIDv7Generator{}),
		engine.WithNotifier(notify.Multi{
			notify.NewLogNotifier(logger),
			metrics.NewRecorder(a.registry),
		}),
	}

	if cfg.RedisURL != "" {
		a.redis, err = cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			a.store.Close()
			return nil, WrapExitError(ExitCommandError, "connect redis", err)
		}
		a.cache = cache.NewRedisCache(a.redis, cfg.CacheTTL, logger)
		coordOpts = append(coordOpts,
			engine.WithCache(a.cache),
			engine.WithGuard(lock.NewRedisGuard(a.redis, cfg.LockTTL, logger)),
		)
	}

	a.coord = engine.NewCoordinator(a.store, coordOpts...)
	return a, nil
}

// Close releases connections and prints metrics when requested.
func (a *app) Close() error {
	if a.metrics {
		if err := metrics.WriteText(a.out.GetErrWriter(), a.registry); err != nil {
			a.logger.Warn("write metrics", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// listGroup reads a group through the cache when one is configured.
func (a *app) listGroup(ctx context.Context, groupID string) ([]order.Item, error) {
	if a.cache != nil {
		items, ok, err := a.cache.Get(ctx, groupID)
		if err != nil {
			a.logger.Warn("cache read failed", "group_id", groupID, "error", err)
		} else if ok {
			a.logger.Debug("cache hit", "group_id", groupID)
			return items, nil
		}
	}

	items, err := a.store.ListOrdered(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if a.cache != nil {
		if err := a.cache.Set(ctx, groupID, items); err != nil {
			a.logger.Warn("cache write failed", "group_id", groupID, "error", err)
		}
	}
	return items, nil
}

// withApp opens the app, runs fn and closes it, keeping fn's error first.
func withApp(opts *RootOptions, cmd *cobra.Command, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, a)
}

