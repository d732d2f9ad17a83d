package directions

import (
	"context"

	"go.uber.org/zap"

	"filltrip/internal/database"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

type cachedFetcher struct {
	next  Fetcher
	cache database.RouteCacheRepository
	log   *zap.Logger
}

// NewCachedFetcher wraps next with a persistent cache keyed on coordinates
// rounded to ~1m. Cache read and write errors are logged and ignored.
func NewCachedFetcher(next Fetcher, cache database.RouteCacheRepository, log *zap.Logger) Fetcher {
	if cache == nil {
		return next
	}
	return &cachedFetcher{next: next, cache: cache, log: log.Named("route_cache")}
}

func (c *cachedFetcher) FetchRoute(ctx context.Context, start, end models.Coordinates) (*models.Route, error) {
	cached, err := c.cache.Get(ctx, start, end)
	if err != nil {
		c.log.Warn("route cache read failed", zap.Error(err))
	}
	if cached != nil {
		metrics.RouteCacheTotal.WithLabelValues("hit").Inc()
		r := cached.Route
		return &r, nil
	}
	metrics.RouteCacheTotal.WithLabelValues("miss").Inc()

	route, err := c.next.FetchRoute(ctx, start, end)
	if err != nil {
		return nil, err
	}

	entry := &models.RouteCacheEntry{Origin: start, Destination: end, Route: *route}
	if err := c.cache.Set(ctx, entry); err != nil {
		c.log.Warn("route cache write failed", zap.Error(err))
	}
	return route, nil
}
