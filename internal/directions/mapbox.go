package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

const mapboxDrivingPath = "/directions/v5/mapbox/driving/"

type mapboxFetcher struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

type mapboxDirectionsResponse struct {
	Code    string        `json:"code"`
	Message string        `json:"message,omitempty"`
	Routes  []mapboxRoute `json:"routes"`
}

type mapboxRoute struct {
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry geoJSONLineString `json:"geometry"`
	Legs     []struct {
		Steps []struct {
			Maneuver struct {
				Instruction string `json:"instruction"`
			} `json:"maneuver"`
		} `json:"steps"`
	} `json:"legs"`
}

// NewMapboxFetcher creates a driving-profile route fetcher backed by the
// Mapbox Directions API
func NewMapboxFetcher(baseURL, token string, log *zap.Logger) Fetcher {
	if baseURL == "" {
		baseURL = "https://api.mapbox.com"
	}
	return &mapboxFetcher{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.Named("mapbox_directions"),
	}
}

func (f *mapboxFetcher) FetchRoute(ctx context.Context, start, end models.Coordinates) (route *models.Route, err error) {
	begin := time.Now()
	defer func() {
		metrics.RouteFetchSeconds.WithLabelValues("mapbox").Observe(time.Since(begin).Seconds())
		metrics.RouteRequestsTotal.WithLabelValues("mapbox", metrics.Outcome(err)).Inc()
	}()

	params := url.Values{}
	params.Set("access_token", f.token)
	params.Set("geometries", "geojson")
	params.Set("overview", "full")
	params.Set("steps", "true")
	queryURL := f.baseURL + mapboxDrivingPath + coordinatePath(start, end) + "?" + params.Encode()

	f.log.Debug("route request", zap.Stringer("start", start), zap.Stringer("end", end))

	status, body, err := doGet(ctx, f.httpClient, queryURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.Warn("route request failed", zap.Error(err))
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: err.Error()}
	}

	var out mapboxDirectionsResponse
	if jsonErr := json.Unmarshal(body, &out); jsonErr != nil {
		if status != http.StatusOK {
			return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: fmt.Sprintf("HTTP %d: %s", status, string(body))}
		}
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: jsonErr.Error()}
	}

	if out.Code == "NoRoute" || (status == http.StatusOK && len(out.Routes) == 0) {
		f.log.Info("directions returned no routes", zap.Stringer("start", start), zap.Stringer("end", end))
		return nil, ErrNoRoute
	}
	if status != http.StatusOK {
		f.log.Warn("directions API error", zap.Int("status", status), zap.String("code", out.Code), zap.String("message", out.Message))
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: fmt.Sprintf("HTTP %d: %s %s", status, out.Code, out.Message)}
	}

	// First route is the recommended one
	best := out.Routes[0]
	route = &models.Route{
		DistanceMeters: best.Distance,
		DurationSecs:   best.Duration,
		Geometry:       best.Geometry.toCoordinates(),
		Steps:          []models.RouteStep{},
	}
	for _, leg := range best.Legs {
		for _, step := range leg.Steps {
			route.Steps = append(route.Steps, models.RouteStep{Instruction: step.Maneuver.Instruction})
		}
	}

	f.log.Debug("route response",
		zap.Float64("distance_meters", route.DistanceMeters),
		zap.Float64("duration_secs", route.DurationSecs),
		zap.Int("steps", len(route.Steps)))
	return route, nil
}
