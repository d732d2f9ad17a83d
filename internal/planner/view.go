package planner

import (
	"github.com/samber/lo"

	"filltrip/internal/models"
)

// FieldView is one endpoint with its search field
type FieldView struct {
	Role               models.Role             `json:"role"`
	Label              string                  `json:"label"`
	Coords             *models.Coordinates     `json:"coords"`
	Input              string                  `json:"input"`
	Suggestions        []models.PlaceCandidate `json:"suggestions"`
	SuggestionsVisible bool                    `json:"suggestions_visible"`
}

// RouteView is the distance/duration readout and directions list
type RouteView struct {
	Distance       string               `json:"distance"`
	Duration       string               `json:"duration"`
	DistanceMeters float64              `json:"distance_meters"`
	DurationSecs   float64              `json:"duration_secs"`
	Steps          []string             `json:"steps"`
	StepsVisible   bool                 `json:"steps_visible"`
	Geometry       []models.Coordinates `json:"geometry"`
}

// View is an immutable snapshot of everything the UI renders
type View struct {
	Version     uint64      `json:"version"`
	SessionID   string      `json:"session_id"`
	Start       FieldView   `json:"start"`
	End         FieldView   `json:"end"`
	PickMode    models.Role `json:"pick_mode"`
	Route       *RouteView  `json:"route"`
	Map         MapState    `json:"map"`
	SidebarOpen bool        `json:"sidebar_open"`
	Mobile      bool        `json:"mobile"`
	Alert       string      `json:"alert,omitempty"`
	Locating    bool        `json:"locating"`
}

// RouteVisible reports whether a route is displayed
func (v View) RouteVisible() bool {
	return v.Route != nil
}

func (c *Controller) snapshot(version uint64) View {
	snap := c.store.Snapshot()
	return View{
		Version:     version,
		SessionID:   c.id,
		Start:       c.fieldView(snap.Start),
		End:         c.fieldView(snap.End),
		PickMode:    c.pickMode,
		Route:       routeView(c.route),
		Map:         c.mapView.State(),
		SidebarOpen: c.sidebarOpen,
		Mobile:      c.mobile(),
		Alert:       c.alert,
		Locating:    c.locating,
	}
}

func (c *Controller) fieldView(ep models.Endpoint) FieldView {
	r := c.resolvers[ep.Role]
	suggestions := r.Suggestions()
	return FieldView{
		Role:               ep.Role,
		Label:              ep.Label,
		Coords:             ep.Coords,
		Input:              r.Text(),
		Suggestions:        suggestions,
		SuggestionsVisible: len(suggestions) > 0,
	}
}

func routeView(r *models.Route) *RouteView {
	if r == nil {
		return nil
	}
	steps := lo.Map(r.Steps, func(s models.RouteStep, _ int) string { return s.Instruction })
	return &RouteView{
		Distance:       r.FormattedDistance(),
		Duration:       r.FormattedDuration(),
		DistanceMeters: r.DistanceMeters,
		DurationSecs:   r.DurationSecs,
		Steps:          steps,
		StepsVisible:   len(steps) > 0,
		Geometry:       append([]models.Coordinates(nil), r.Geometry...),
	}
}
