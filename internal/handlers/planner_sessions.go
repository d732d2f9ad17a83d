package handlers

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/planner"
)

// PlannerFactory builds a controller for a viewport of the given width
type PlannerFactory func(width int) (*planner.Controller, error)

type plannerSession struct {
	ctrl     *planner.Controller
	lastUsed time.Time
}

// PlannerRegistry keeps one planner per login session in memory
type PlannerRegistry struct {
	factory  PlannerFactory
	sessions map[string]*plannerSession
	now      func() time.Time
	log      *zap.Logger
	mu       sync.Mutex
}

// NewPlannerRegistry creates an empty registry
func NewPlannerRegistry(factory PlannerFactory, log *zap.Logger) *PlannerRegistry {
	return &PlannerRegistry{
		factory:  factory,
		sessions: make(map[string]*plannerSession),
		now:      time.Now,
		log:      log.Named("planners"),
	}
}

// Get returns the planner bound to token, creating it on first use.
// width only applies when a new planner is created.
func (r *PlannerRegistry) Get(token string, width int) (*planner.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[token]; ok {
		s.lastUsed = r.now()
		return s.ctrl, nil
	}

	ctrl, err := r.factory(width)
	if err != nil {
		return nil, err
	}
	r.sessions[token] = &plannerSession{ctrl: ctrl, lastUsed: r.now()}
	r.log.Debug("planner created", zap.String("planner_id", ctrl.ID()), zap.Int("width", width))
	return ctrl, nil
}

// Touch marks the planner bound to token as used now. Unknown tokens are
// ignored.
func (r *PlannerRegistry) Touch(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[token]; ok {
		s.lastUsed = r.now()
	}
}

// Delete closes and forgets the planner bound to token
func (r *PlannerRegistry) Delete(token string) {
	r.mu.Lock()
	s, ok := r.sessions[token]
	delete(r.sessions, token)
	r.mu.Unlock()

	if ok {
		s.ctrl.Close()
		r.log.Debug("planner deleted", zap.String("planner_id", s.ctrl.ID()))
	}
}

// Sweep closes planners idle for longer than maxIdle and returns how many
func (r *PlannerRegistry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var stale []*plannerSession
	for token, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			stale = append(stale, s)
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.ctrl.Close()
	}
	if len(stale) > 0 {
		r.log.Info("swept idle planners", zap.Int("count", len(stale)))
	}
	return len(stale)
}

// Len reports the number of live planners
func (r *PlannerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll shuts every planner down
func (r *PlannerRegistry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*plannerSession)
	r.mu.Unlock()

	for _, s := range sessions {
		s.ctrl.Close()
	}
}
