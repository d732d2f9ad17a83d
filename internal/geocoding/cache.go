package geocoding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bluele/gcache"

	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

type cachedGeocoder struct {
	next  Geocoder
	cache gcache.Cache
}

// NewCachedGeocoder wraps next with an LRU cache of successful lookups.
// Failures are never cached so a later keystroke can retry.
func NewCachedGeocoder(next Geocoder, size int, ttl time.Duration) Geocoder {
	if size <= 0 {
		return next
	}
	builder := gcache.New(size).LRU()
	if ttl > 0 {
		builder = builder.Expiration(ttl)
	}
	return &cachedGeocoder{
		next:  next,
		cache: builder.Build(),
	}
}

func (g *cachedGeocoder) Search(ctx context.Context, query string, limit int) ([]models.PlaceCandidate, error) {
	key := fmt.Sprintf("%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))

	if v, err := g.cache.Get(key); err == nil {
		metrics.GeocodeCacheTotal.WithLabelValues("hit").Inc()
		cached := v.([]models.PlaceCandidate)
		out := make([]models.PlaceCandidate, len(cached))
		copy(out, cached)
		return out, nil
	}
	metrics.GeocodeCacheTotal.WithLabelValues("miss").Inc()

	results, err := g.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	stored := make([]models.PlaceCandidate, len(results))
	copy(stored, results)
	_ = g.cache.Set(key, stored)
	return results, nil
}
