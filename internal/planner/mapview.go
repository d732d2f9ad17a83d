package planner

import (
	"github.com/samber/lo"

	"filltrip/internal/models"
)

// Viewport padding in pixels. The sidebar occupies the left edge on
// desktop and a bottom sheet on mobile.
const (
	basePadding         = 60
	desktopSidebarExtra = 400
	mobileSidebarExtra  = 320
	LocateZoom          = 14
)

// Marker is a positioned endpoint pin
type Marker struct {
	Role   models.Role        `json:"role"`
	Coords models.Coordinates `json:"coords"`
	Label  string             `json:"label"`
	ID     int                `json:"id"`
}

// RouteLine is the drawn route. Source holds the geometry; it is replaced
// in place on later routes while the layer is kept.
type RouteLine struct {
	LayerID string               `json:"layer_id"`
	Source  []models.Coordinates `json:"source"`
	Updates int                  `json:"updates"`
}

// Bounds is a south-west/north-east box
type Bounds struct {
	SouthWest models.Coordinates `json:"sw"`
	NorthEast models.Coordinates `json:"ne"`
}

// Padding is the fit inset per side
type Padding struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Viewport describes the last camera instruction. Exactly one of Fit or
// Center is set once the map has moved.
type Viewport struct {
	Fit     *Bounds             `json:"fit,omitempty"`
	Padding Padding             `json:"padding"`
	Center  *models.Coordinates `json:"center,omitempty"`
	Zoom    float64             `json:"zoom,omitempty"`
}

// Layout is the sidebar state used when fitting
type Layout struct {
	SidebarOpen bool
	Mobile      bool
}

// MapState is a copy of everything drawn on the map
type MapState struct {
	Markers       []Marker   `json:"markers"`
	Line          *RouteLine `json:"line,omitempty"`
	Viewport      Viewport   `json:"viewport"`
	LineCreations int        `json:"line_creations"`
}

// MapView keeps the map surface in step with the store and route.
// Markers are created on first set and moved afterwards.
type MapView struct {
	markers       map[models.Role]*Marker
	nextMarkerID  int
	line          *RouteLine
	lineCreations int
	viewport      Viewport
}

func NewMapView() *MapView {
	return &MapView{markers: make(map[models.Role]*Marker)}
}

// OnChange is the store listener
func (m *MapView) OnChange(ch Change) {
	switch ch.Kind {
	case ChangeSet:
		m.place(ch.Snapshot.Get(ch.Role))
	case ChangeSwap:
		start, end := m.markers[models.RoleStart], m.markers[models.RoleEnd]
		m.markers = make(map[models.Role]*Marker)
		m.adopt(models.RoleStart, end)
		m.adopt(models.RoleEnd, start)
		m.place(ch.Snapshot.Start)
		m.place(ch.Snapshot.End)
	case ChangeClear:
		m.markers = make(map[models.Role]*Marker)
		m.ClearRoute()
	}
}

// adopt hands an existing marker object to role
func (m *MapView) adopt(role models.Role, mk *Marker) {
	if mk == nil {
		return
	}
	mk.Role = role
	m.markers[role] = mk
}

func (m *MapView) place(ep models.Endpoint) {
	if !ep.IsSet() {
		delete(m.markers, ep.Role)
		return
	}
	mk, ok := m.markers[ep.Role]
	if !ok {
		m.nextMarkerID++
		mk = &Marker{Role: ep.Role, ID: m.nextMarkerID}
		m.markers[ep.Role] = mk
	}
	mk.Coords = *ep.Coords
	mk.Label = ep.Label
}

// ShowRoute draws r and fits the viewport to its geometry
func (m *MapView) ShowRoute(r *models.Route, layout Layout) {
	geometry := append([]models.Coordinates(nil), r.Geometry...)
	if m.line == nil {
		m.lineCreations++
		m.line = &RouteLine{LayerID: "route", Source: geometry}
	} else {
		m.line.Source = geometry
		m.line.Updates++
	}

	if b, ok := BoundsOf(geometry); ok {
		m.viewport = Viewport{Fit: &b, Padding: FitPadding(layout)}
	}
}

// ClearRoute removes the route layer
func (m *MapView) ClearRoute() {
	m.line = nil
}

// CenterOn moves the camera to c at zoom
func (m *MapView) CenterOn(c models.Coordinates, zoom float64) {
	m.viewport = Viewport{Center: &c, Zoom: zoom}
}

// State returns a copy of the current surface
func (m *MapView) State() MapState {
	st := MapState{
		Markers:       []Marker{},
		Viewport:      m.viewport,
		LineCreations: m.lineCreations,
	}
	for _, role := range []models.Role{models.RoleStart, models.RoleEnd} {
		if mk, ok := m.markers[role]; ok {
			st.Markers = append(st.Markers, *mk)
		}
	}
	if m.line != nil {
		line := *m.line
		line.Source = append([]models.Coordinates(nil), m.line.Source...)
		st.Line = &line
	}
	return st
}

// FitPadding reserves room for an open sidebar: on the left edge on
// desktop, along the bottom on mobile.
func FitPadding(layout Layout) Padding {
	p := Padding{Top: basePadding, Right: basePadding, Bottom: basePadding, Left: basePadding}
	if !layout.SidebarOpen {
		return p
	}
	if layout.Mobile {
		p.Bottom += mobileSidebarExtra
	} else {
		p.Left += desktopSidebarExtra
	}
	return p
}

// BoundsOf returns the bounding box of points
func BoundsOf(points []models.Coordinates) (Bounds, bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	lngs := lo.Map(points, func(c models.Coordinates, _ int) float64 { return c.Lng })
	lats := lo.Map(points, func(c models.Coordinates, _ int) float64 { return c.Lat })
	return Bounds{
		SouthWest: models.Coordinates{Lng: lo.Min(lngs), Lat: lo.Min(lats)},
		NorthEast: models.Coordinates{Lng: lo.Max(lngs), Lat: lo.Max(lats)},
	}, true
}
