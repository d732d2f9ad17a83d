package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"filltrip/internal/models"
)

// StubGeocoder answers searches from a fixed table keyed by lowercase query.
// Unknown queries return an empty candidate list.
type StubGeocoder struct {
	mu      sync.Mutex
	Results map[string][]models.PlaceCandidate
	Err     error
	queries []string
}

func NewStubGeocoder() *StubGeocoder {
	return &StubGeocoder{Results: make(map[string][]models.PlaceCandidate)}
}

// Add registers the candidates returned for query
func (g *StubGeocoder) Add(query string, candidates ...models.PlaceCandidate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Results[strings.ToLower(query)] = candidates
}

func (g *StubGeocoder) Search(ctx context.Context, query string, limit int) ([]models.PlaceCandidate, error) {
	g.mu.Lock()
	g.queries = append(g.queries, query)
	res, err := g.Results[strings.ToLower(query)], g.Err
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return append([]models.PlaceCandidate(nil), res...), nil
}

// Queries returns every query received so far
func (g *StubGeocoder) Queries() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.queries...)
}

// ErrLocationDenied mimics a browser permission refusal
var ErrLocationDenied = errors.New("User denied Geolocation")

// StubLocator returns a fixed position or error
type StubLocator struct {
	Coords models.Coordinates
	Err    error
}

func (l *StubLocator) Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	if l.Err != nil {
		return models.Coordinates{}, l.Err
	}
	return l.Coords, nil
}
