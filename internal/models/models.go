package models

import (
	"fmt"
	"math"
	"time"
)

// Distance conversion constants
const (
	MetersPerKilometer = 1000.0
	SecondsPerMinute   = 60.0
)

// NoneLabel is shown for an endpoint without a coordinate
const NoneLabel = "(none)"

// Coordinates represents a geographic point in WGS84 degrees
type Coordinates struct {
	Lng float64 `json:"lng"`
	Lat float64 `json:"lat"`
}

// String formats the point as "lat, lng" with 4 decimals
func (c Coordinates) String() string {
	return fmt.Sprintf("%.4f, %.4f", c.Lat, c.Lng)
}

// Role identifies one of the two route terminals
type Role string

const (
	RoleStart Role = "start"
	RoleEnd   Role = "end"
)

// Valid reports whether r is start or end
func (r Role) Valid() bool {
	return r == RoleStart || r == RoleEnd
}

// Other returns the opposite role
func (r Role) Other() Role {
	if r == RoleStart {
		return RoleEnd
	}
	return RoleStart
}

// Endpoint is one route terminal. Coords is nil while unset.
type Endpoint struct {
	Role   Role         `json:"role"`
	Coords *Coordinates `json:"coords"`
	Label  string       `json:"label"`
}

// IsSet reports whether the endpoint has a coordinate
func (e Endpoint) IsSet() bool {
	return e.Coords != nil
}

// PlaceCandidate is a geocoded search result awaiting selection
type PlaceCandidate struct {
	Coords      Coordinates `json:"coords"`
	DisplayName string      `json:"display_name"`
}

// RouteStep is a single turn-by-turn instruction
type RouteStep struct {
	Instruction string `json:"instruction"`
}

// Route is a computed driving path between the two endpoints
type Route struct {
	DistanceMeters float64       `json:"distance_meters"`
	DurationSecs   float64       `json:"duration_secs"`
	Geometry       []Coordinates `json:"geometry"`
	Steps          []RouteStep   `json:"steps"`
}

// FormattedDistance returns the distance in kilometers with 2 decimals
func (r *Route) FormattedDistance() string {
	return FormatDistance(r.DistanceMeters)
}

// FormattedDuration returns the duration rounded to whole minutes
func (r *Route) FormattedDuration() string {
	return FormatDuration(r.DurationSecs)
}

// FormatDistance renders meters as "15.23 km"
func FormatDistance(meters float64) string {
	return fmt.Sprintf("%.2f km", meters/MetersPerKilometer)
}

// FormatDuration renders seconds as "20 min"
func FormatDuration(seconds float64) string {
	return fmt.Sprintf("%d min", int(math.Round(seconds/SecondsPerMinute)))
}

// User is an authenticated FillTrip account
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"fullName"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session binds a browser cookie to a user
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// RouteCacheEntry represents a cached route lookup
type RouteCacheEntry struct {
	Origin      Coordinates `json:"origin"`
	Destination Coordinates `json:"destination"`
	Route       Route       `json:"route"`
}

// RoundCoordinate rounds to 5 decimal places (~1m precision)
func RoundCoordinate(v float64) float64 {
	return math.Round(v*100000) / 100000
}
