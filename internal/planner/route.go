package planner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"filltrip/internal/directions"
	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

// RouteService fetches driving routes. Only the most recently requested
// fetch may be applied; earlier ones are cancelled and their results
// dropped even if they resolve last.
type RouteService struct {
	fetcher directions.Fetcher
	post    func(func())
	ctx     context.Context
	log     *zap.Logger

	gen    uint64
	cancel context.CancelFunc
}

func newRouteService(ctx context.Context, fetcher directions.Fetcher, post func(func()), log *zap.Logger) *RouteService {
	return &RouteService{
		fetcher: fetcher,
		post:    post,
		ctx:     ctx,
		log:     log,
	}
}

// Request starts a fetch for start→end. apply is called on the loop with
// the first route if the fetch is still current and produced one. Empty
// results and failures are dropped without calling apply.
func (s *RouteService) Request(start, end models.Coordinates, apply func(*models.Route)) {
	s.Invalidate()
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel

	go func() {
		route, err := s.fetcher.FetchRoute(ctx, start, end)
		s.post(func() { s.complete(gen, route, err, apply) })
	}()
}

func (s *RouteService) complete(gen uint64, route *models.Route, err error, apply func(*models.Route)) {
	if gen != s.gen {
		metrics.StaleResultsTotal.WithLabelValues("route").Inc()
		return
	}
	s.cancel()
	s.cancel = nil

	switch {
	case errors.Is(err, directions.ErrNoRoute), err == nil && route == nil:
		s.log.Info("no route between endpoints, keeping previous route")
		return
	case err != nil:
		s.log.Warn("route fetch failed", zap.Error(err))
		return
	}
	apply(route)
}

// Invalidate drops any in-flight fetch
func (s *RouteService) Invalidate() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.cancel = nil
	s.gen++
}

// Pending reports whether a fetch is in flight
func (s *RouteService) Pending() bool {
	return s.cancel != nil
}
