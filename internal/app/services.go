package app

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/pantryledger/pantryledger/internal/close"
	"github.com/pantryledger/pantryledger/internal/dashboard"
	"github.com/pantryledger/pantryledger/internal/observability"
	"github.com/pantryledger/pantryledger/internal/platform/cache"
	"github.com/pantryledger/pantryledger/internal/reconcile"
	"github.com/pantryledger/pantryledger/internal/store"
)

// Services holds the wired domain services shared by the API and the worker.
type Services struct {
	Store     store.Tabular
	Engine    *reconcile.Engine
	Cycle     *close.Service
	Dashboard *dashboard.Service
	Metrics   *observability.Metrics
	Redis     *redis.Client

	closers []func()
}

// NewServices opens the store and Redis and wires the domain services. Redis
// is optional: without it the dashboard is not cached and cycle transitions
// are not locked.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rc, err := cfg.Reconcile()
	if err != nil {
		return nil, err
	}
	st, release, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	s := &Services{Store: st, Metrics: observability.NewMetrics()}
	s.closers = append(s.closers, release)

	if err := dashboard.SetupCacheMetrics(s.Metrics.Registerer()); err != nil {
		s.Close()
		return nil, err
	}

	engine, err := reconcile.NewEngine(st, rc, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Engine = engine.WithObserver(s.Metrics)
	s.Cycle = close.NewService(st, s.Engine, logger)

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, running without cache and cycle lock", slog.Any("error", err))
		} else {
			s.Redis = client
			s.closers = append(s.closers, func() {
				if err := client.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			})
			s.Cycle.WithLocker(cache.NewLocker(client, cfg.LockTTL))
		}
	}
	s.Dashboard = dashboard.NewService(st, s.Cycle, rc.Tables, dashboard.NewCache(s.Redis, cfg.CacheTTL), logger)
	return s, nil
}

// Close releases every resource opened by NewServices, last opened first.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
