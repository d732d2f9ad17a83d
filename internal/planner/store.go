package planner

import "filltrip/internal/models"

// ChangeKind says which store operation produced a Change
type ChangeKind int

const (
	ChangeSet ChangeKind = iota
	ChangeSwap
	ChangeClear
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSet:
		return "set"
	case ChangeSwap:
		return "swap"
	case ChangeClear:
		return "clear"
	}
	return "unknown"
}

// Snapshot is an immutable copy of both endpoints
type Snapshot struct {
	Start models.Endpoint
	End   models.Endpoint
}

// Get returns the endpoint for role
func (s Snapshot) Get(role models.Role) models.Endpoint {
	if role == models.RoleEnd {
		return s.End
	}
	return s.Start
}

// Complete reports whether both endpoints have coordinates
func (s Snapshot) Complete() bool {
	return s.Start.IsSet() && s.End.IsSet()
}

// Change is delivered to listeners after every mutation. Role is only
// meaningful for ChangeSet.
type Change struct {
	Kind     ChangeKind
	Role     models.Role
	Snapshot Snapshot
}

// Listener is notified synchronously, in subscription order
type Listener func(Change)

// EndpointStore owns the start/end pair. It is not safe for concurrent
// use; the controller loop is its only caller.
type EndpointStore struct {
	start     models.Endpoint
	end       models.Endpoint
	listeners []Listener
}

func NewEndpointStore() *EndpointStore {
	return &EndpointStore{
		start: emptyEndpoint(models.RoleStart),
		end:   emptyEndpoint(models.RoleEnd),
	}
}

func emptyEndpoint(role models.Role) models.Endpoint {
	return models.Endpoint{Role: role, Label: models.NoneLabel}
}

// Subscribe registers l for every subsequent change
func (s *EndpointStore) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *EndpointStore) SetStart(c models.Coordinates, label string) {
	s.Set(models.RoleStart, c, label)
}

func (s *EndpointStore) SetEnd(c models.Coordinates, label string) {
	s.Set(models.RoleEnd, c, label)
}

// Set overwrites the endpoint for role and notifies listeners
func (s *EndpointStore) Set(role models.Role, c models.Coordinates, label string) {
	ep := models.Endpoint{Role: role, Coords: &c, Label: label}
	if role == models.RoleEnd {
		s.end = ep
	} else {
		s.start = ep
	}
	s.notify(Change{Kind: ChangeSet, Role: role})
}

// Swap exchanges coordinates and labels of both endpoints with a single
// notification.
func (s *EndpointStore) Swap() {
	s.start, s.end = s.end, s.start
	s.start.Role = models.RoleStart
	s.end.Role = models.RoleEnd
	s.notify(Change{Kind: ChangeSwap})
}

// Clear unsets both endpoints and resets their labels
func (s *EndpointStore) Clear() {
	s.start = emptyEndpoint(models.RoleStart)
	s.end = emptyEndpoint(models.RoleEnd)
	s.notify(Change{Kind: ChangeClear})
}

// Snapshot returns a copy that later mutations do not affect
func (s *EndpointStore) Snapshot() Snapshot {
	return Snapshot{Start: copyEndpoint(s.start), End: copyEndpoint(s.end)}
}

func copyEndpoint(e models.Endpoint) models.Endpoint {
	if e.Coords != nil {
		c := *e.Coords
		e.Coords = &c
	}
	return e
}

func (s *EndpointStore) notify(ch Change) {
	for _, l := range s.listeners {
		ch.Snapshot = s.Snapshot()
		l(ch)
	}
}
