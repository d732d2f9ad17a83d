package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"filltrip/internal/models"
)

// MockRouteCache is an in-memory RouteCacheRepository for tests
type MockRouteCache struct {
	mu      sync.Mutex
	entries map[string]*models.RouteCacheEntry
	stored  map[string]time.Time
}

func NewMockRouteCache() *MockRouteCache {
	return &MockRouteCache{
		entries: make(map[string]*models.RouteCacheEntry),
		stored:  make(map[string]time.Time),
	}
}

func (c *MockRouteCache) cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

func (c *MockRouteCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[c.cacheKey(origin, dest)]; ok {
		return entry, nil
	}
	return nil, nil
}

func (c *MockRouteCache) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := c.cacheKey(entry.Origin, entry.Destination)
	c.entries[key] = entry
	c.stored[key] = time.Now()
	return nil
}

func (c *MockRouteCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.RouteCacheEntry)
	c.stored = make(map[string]time.Time)
	return nil
}

func (c *MockRouteCache) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for key, at := range c.stored {
		if at.Before(cutoff) {
			delete(c.entries, key)
			delete(c.stored, key)
			n++
		}
	}
	return n, nil
}

// Count returns the number of entries in the cache
func (c *MockRouteCache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// RouteCall tracks a call to the route fetcher
type RouteCall struct {
	Start models.Coordinates
	End   models.Coordinates
}

// StubFetcher returns a fixed route (or error) and records calls.
// When Gate is non-nil every call blocks until a value is received from it
// or the context is done.
type StubFetcher struct {
	mu    sync.Mutex
	Route *models.Route
	Err   error
	Gate  chan struct{}
	calls []RouteCall
}

// NewStubFetcher returns a fetcher answering 15230 m / 1200 s with a
// straight two-point geometry and two steps.
func NewStubFetcher() *StubFetcher {
	return &StubFetcher{
		Route: &models.Route{
			DistanceMeters: 15230,
			DurationSecs:   1200,
			Steps: []models.RouteStep{
				{Instruction: "Head north on Rizal Avenue"},
				{Instruction: "You have arrived at your destination"},
			},
		},
	}
}

func (f *StubFetcher) FetchRoute(ctx context.Context, start, end models.Coordinates) (*models.Route, error) {
	f.mu.Lock()
	f.calls = append(f.calls, RouteCall{Start: start, End: end})
	gate, route, err := f.Gate, f.Route, f.Err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, nil
	}
	r := *route
	if len(r.Geometry) == 0 {
		r.Geometry = []models.Coordinates{start, end}
	}
	return &r, nil
}

// Calls returns a copy of the recorded calls
func (f *StubFetcher) Calls() []RouteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RouteCall(nil), f.calls...)
}

// Set replaces the canned route and error
func (f *StubFetcher) Set(route *models.Route, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Route, f.Err = route, err
}
