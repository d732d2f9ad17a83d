package directions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filltrip/internal/models"
)

// Fetcher computes a driving route between two coordinates
type Fetcher interface {
	FetchRoute(ctx context.Context, start, end models.Coordinates) (*models.Route, error)
}

// ErrNoRoute is returned when the routing API answers with zero routes
var ErrNoRoute = errors.New("no route found")

// ErrRouteFailed is returned when a directions API request fails
type ErrRouteFailed struct {
	Origin models.Coordinates
	Dest   models.Coordinates
	Reason string
}

func (e *ErrRouteFailed) Error() string {
	return fmt.Sprintf("route calculation failed: %s", e.Reason)
}

const userAgent = "FillTrip/1.0"

// coordinatePath renders "lng,lat;lng,lat" as expected by OSRM-style APIs
func coordinatePath(start, end models.Coordinates) string {
	return strings.Join([]string{
		fmt.Sprintf("%.6f,%.6f", start.Lng, start.Lat),
		fmt.Sprintf("%.6f,%.6f", end.Lng, end.Lat),
	}, ";")
}

// doGet performs the request and returns the body. Non-2xx responses are
// returned together with their body so callers can inspect API error codes.
func doGet(ctx context.Context, client *http.Client, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response body failed: %w", err)
	}
	return resp.StatusCode, body, nil
}

// geoJSONLineString is the geometry shape returned with geometries=geojson
type geoJSONLineString struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

func (g geoJSONLineString) toCoordinates() []models.Coordinates {
	out := make([]models.Coordinates, len(g.Coordinates))
	for i, c := range g.Coordinates {
		out[i] = models.Coordinates{Lng: c[0], Lat: c[1]}
	}
	return out
}
