package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"cinecat/internal/api"
	"cinecat/internal/cache"
	"cinecat/internal/config"
	"cinecat/internal/logging"
	"cinecat/internal/metrics"
	"cinecat/internal/tmdb"
	"cinecat/internal/upstream"
)

type Builder struct {
	cfg    *config.Config
	logger logging.Logger
}

func NewBuilder(cfg *config.Config, logger logging.Logger) *Builder {
	return &Builder{
		cfg:    cfg,
		logger: logger,
	}
}

// Build wires the catalog service. Background work, such as the cache
// sweeper, stops when ctx is done.
func (b *Builder) Build(ctx context.Context) (*http.Server, error) {
	metrics.Init()

	pool, err := upstream.NewPool(b.cfg.TMDB.BaseURLs, &upstream.CircuitBreakerConfig{
		ConsecutiveFailures: b.cfg.TMDB.CircuitBreaker.ConsecutiveFailures,
		Cooldown:            b.cfg.TMDB.CircuitBreaker.Cooldown,
	})
	if err != nil {
		return nil, err
	}
	metrics.TrackOpenCircuits(pool.OpenCircuits)

	client := tmdb.New(tmdb.Options{
		APIKey:     b.cfg.TMDB.APIKey,
		Region:     b.cfg.TMDB.Region,
		Pool:       pool,
		HTTPClient: upstream.NewClient(nil, b.cfg.TMDB.Timeout),
		Fetcher:    b.buildFetcher(ctx),
		Logger:     b.logger,
	})

	router, err := api.NewRouter(api.Options{
		Catalog:        client,
		Logger:         b.logger,
		ServiceName:    b.cfg.Telemetry.ServiceName,
		AllowedOrigins: b.cfg.Server.CORS.AllowedOrigins,
		BlockedCIDRs:   b.cfg.Server.BlockedCIDRs,
	})
	if err != nil {
		return nil, fmt.Errorf("build router: %w", err)
	}

	return &http.Server{
		Addr:              b.cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// buildFetcher returns a caching fetcher, or a pass-through one when the
// TTL is zero so that nothing is stored at all.
func (b *Builder) buildFetcher(ctx context.Context) *cache.Fetcher {
	ttl := b.cfg.CacheTTL()
	if ttl <= 0 {
		b.logger.Info("response cache disabled")
		return cache.NewFetcher(nil)
	}

	tc := cache.NewTimedCache(ttl)
	tc.StartSweeper(ctx, b.cfg.Cache.SweepInterval, func(removed int) {
		metrics.AddCacheSwept(removed)
		if removed > 0 {
			b.logger.Debug("cache sweep", "removed", removed, "remaining", tc.Len())
		}
	})

	opts := []cache.FetcherOption{cache.WithObserver(metrics.CacheObserver{})}
	if b.cfg.CacheCoalesce() {
		opts = append(opts, cache.WithCoalescing())
	}

	b.logger.Info("response cache enabled",
		"ttl", ttl,
		"sweep_interval", b.cfg.Cache.SweepInterval,
		"coalesce", b.cfg.CacheCoalesce(),
	)
	return cache.NewFetcher(tc, opts...)
}
