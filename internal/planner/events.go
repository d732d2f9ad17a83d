package planner

import (
	"fmt"

	"filltrip/internal/models"
)

// Event is a user action or host report applied on the controller loop
type Event interface {
	Name() string
	apply(c *Controller) error
}

// ErrInvalidEvent is returned for malformed or unknown events
type ErrInvalidEvent struct {
	Type   string
	Reason string
}

func (e *ErrInvalidEvent) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.Type, e.Reason)
}

// TypeQuery is a keystroke in a search field; Text is the full field value
type TypeQuery struct {
	Role models.Role
	Text string
}

// SelectCandidate picks a visible suggestion by position
type SelectCandidate struct {
	Role  models.Role
	Index int
}

// DismissSuggestions is a pointer interaction outside the list
type DismissSuggestions struct {
	Role models.Role
}

// MapClick targets the endpoint chosen by the current pick mode
type MapClick struct {
	Coords models.Coordinates
}

type SetPickMode struct {
	Mode models.Role
}

type Swap struct{}

type Clear struct{}

// Locate asks the server-side locator for a high-accuracy fix
type Locate struct{}

// LocationFound reports a fix obtained by the host (e.g. the browser)
type LocationFound struct {
	Coords models.Coordinates
}

// LocationFailed reports a host geolocation error
type LocationFailed struct {
	Message string
}

type ToggleSidebar struct{}

// ResizeViewport reports the new viewport width in CSS pixels
type ResizeViewport struct {
	Width int
}

// DismissAlert acknowledges the blocking notification
type DismissAlert struct{}

func (TypeQuery) Name() string          { return "type_query" }
func (SelectCandidate) Name() string    { return "select_candidate" }
func (DismissSuggestions) Name() string { return "dismiss_suggestions" }
func (MapClick) Name() string           { return "map_click" }
func (SetPickMode) Name() string        { return "set_pick_mode" }
func (Swap) Name() string               { return "swap" }
func (Clear) Name() string              { return "clear" }
func (Locate) Name() string             { return "locate" }
func (LocationFound) Name() string      { return "location_found" }
func (LocationFailed) Name() string     { return "location_failed" }
func (ToggleSidebar) Name() string      { return "toggle_sidebar" }
func (ResizeViewport) Name() string     { return "resize_viewport" }
func (DismissAlert) Name() string       { return "dismiss_alert" }

func (e TypeQuery) apply(c *Controller) error {
	r, err := c.resolver(e.Name(), e.Role)
	if err != nil {
		return err
	}
	r.Input(e.Text)
	return nil
}

func (e SelectCandidate) apply(c *Controller) error {
	r, err := c.resolver(e.Name(), e.Role)
	if err != nil {
		return err
	}
	return r.Select(e.Index)
}

func (e DismissSuggestions) apply(c *Controller) error {
	r, err := c.resolver(e.Name(), e.Role)
	if err != nil {
		return err
	}
	r.Dismiss()
	return nil
}

func (e MapClick) apply(c *Controller) error {
	label := fmt.Sprintf("Dropped pin (%s)", e.Coords)
	c.resolvers[c.pickMode].SetText(label)
	c.store.Set(c.pickMode, e.Coords, label)
	return nil
}

func (e SetPickMode) apply(c *Controller) error {
	if !e.Mode.Valid() {
		return &ErrInvalidEvent{Type: e.Name(), Reason: fmt.Sprintf("unknown mode %q", e.Mode)}
	}
	c.pickMode = e.Mode
	return nil
}

func (e Swap) apply(c *Controller) error {
	start, end := c.resolvers[models.RoleStart], c.resolvers[models.RoleEnd]
	startText, endText := start.Text(), end.Text()
	start.SetText(endText)
	end.SetText(startText)
	c.store.Swap()
	return nil
}

func (e Clear) apply(c *Controller) error {
	c.store.Clear()
	for _, r := range c.resolvers {
		r.Reset()
	}
	return nil
}

func (e Locate) apply(c *Controller) error {
	c.locate()
	return nil
}

func (e LocationFound) apply(c *Controller) error {
	c.locating = false
	c.resolvers[models.RoleStart].SetText(MyLocationLabel)
	c.store.SetStart(e.Coords, MyLocationLabel)
	c.mapView.CenterOn(e.Coords, LocateZoom)
	return nil
}

func (e LocationFailed) apply(c *Controller) error {
	c.locating = false
	c.alert = fmt.Sprintf("Unable to get your location: %s", e.Message)
	return nil
}

func (e ToggleSidebar) apply(c *Controller) error {
	c.sidebarOpen = !c.sidebarOpen
	return nil
}

func (e ResizeViewport) apply(c *Controller) error {
	if e.Width <= 0 {
		return &ErrInvalidEvent{Type: e.Name(), Reason: "width must be positive"}
	}
	c.resize(e.Width)
	return nil
}

func (e DismissAlert) apply(c *Controller) error {
	c.alert = ""
	return nil
}

// Envelope is the wire form of an Event
type Envelope struct {
	Type    string              `json:"type"`
	Role    models.Role         `json:"role,omitempty"`
	Text    string              `json:"text,omitempty"`
	Index   int                 `json:"index,omitempty"`
	Coords  *models.Coordinates `json:"coords,omitempty"`
	Mode    models.Role         `json:"mode,omitempty"`
	Width   int                 `json:"width,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Event converts the envelope into a typed event
func (e Envelope) Event() (Event, error) {
	needRole := func(ev Event) (Event, error) {
		if !e.Role.Valid() {
			return nil, &ErrInvalidEvent{Type: e.Type, Reason: fmt.Sprintf("unknown role %q", e.Role)}
		}
		return ev, nil
	}
	needCoords := func() error {
		if e.Coords == nil {
			return &ErrInvalidEvent{Type: e.Type, Reason: "coords are required"}
		}
		return nil
	}

	switch e.Type {
	case TypeQuery{}.Name():
		return needRole(TypeQuery{Role: e.Role, Text: e.Text})
	case SelectCandidate{}.Name():
		return needRole(SelectCandidate{Role: e.Role, Index: e.Index})
	case DismissSuggestions{}.Name():
		return needRole(DismissSuggestions{Role: e.Role})
	case MapClick{}.Name():
		if err := needCoords(); err != nil {
			return nil, err
		}
		return MapClick{Coords: *e.Coords}, nil
	case SetPickMode{}.Name():
		return SetPickMode{Mode: e.Mode}, nil
	case Swap{}.Name():
		return Swap{}, nil
	case Clear{}.Name():
		return Clear{}, nil
	case Locate{}.Name():
		return Locate{}, nil
	case LocationFound{}.Name():
		if err := needCoords(); err != nil {
			return nil, err
		}
		return LocationFound{Coords: *e.Coords}, nil
	case LocationFailed{}.Name():
		return LocationFailed{Message: e.Message}, nil
	case ToggleSidebar{}.Name():
		return ToggleSidebar{}, nil
	case ResizeViewport{}.Name():
		return ResizeViewport{Width: e.Width}, nil
	case DismissAlert{}.Name():
		return DismissAlert{}, nil
	}
	return nil, &ErrInvalidEvent{Type: e.Type, Reason: "unknown event type"}
}
