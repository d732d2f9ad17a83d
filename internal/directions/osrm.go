package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

type osrmFetcher struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

type osrmRouteResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message,omitempty"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"`
	Duration float64           `json:"duration"`
	Geometry geoJSONLineString `json:"geometry"`
	Legs     []struct {
		Steps []osrmStep `json:"steps"`
	} `json:"legs"`
}

type osrmStep struct {
	Name     string `json:"name"`
	Maneuver struct {
		Type     string `json:"type"`
		Modifier string `json:"modifier"`
	} `json:"maneuver"`
}

// NewOSRMFetcher creates a route fetcher backed by an OSRM route service
func NewOSRMFetcher(baseURL string, log *zap.Logger) Fetcher {
	if baseURL == "" {
		baseURL = "https://router.project-osrm.org"
	}
	return &osrmFetcher{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.Named("osrm"),
	}
}

func (f *osrmFetcher) FetchRoute(ctx context.Context, start, end models.Coordinates) (route *models.Route, err error) {
	begin := time.Now()
	defer func() {
		metrics.RouteFetchSeconds.WithLabelValues("osrm").Observe(time.Since(begin).Seconds())
		metrics.RouteRequestsTotal.WithLabelValues("osrm", metrics.Outcome(err)).Inc()
	}()

	queryURL := fmt.Sprintf("%s/route/v1/driving/%s?overview=full&geometries=geojson&steps=true",
		f.baseURL, coordinatePath(start, end))

	status, body, err := doGet(ctx, f.httpClient, queryURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.log.Warn("OSRM request failed", zap.Stringer("start", start), zap.Stringer("end", end), zap.Error(err))
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: err.Error()}
	}

	// OSRM answers NoRoute with a 400 and a JSON body
	var out osrmRouteResponse
	if jsonErr := json.Unmarshal(body, &out); jsonErr != nil {
		if status != http.StatusOK {
			f.log.Warn("OSRM API error", zap.Int("status", status), zap.ByteString("body", body))
			return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: fmt.Sprintf("HTTP %d: %s", status, string(body))}
		}
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: jsonErr.Error()}
	}

	if out.Code == "NoRoute" || (out.Code == "Ok" && len(out.Routes) == 0) {
		return nil, ErrNoRoute
	}
	if status != http.StatusOK || out.Code != "Ok" {
		f.log.Warn("OSRM API error", zap.Int("status", status), zap.String("code", out.Code), zap.String("message", out.Message))
		return nil, &ErrRouteFailed{Origin: start, Dest: end, Reason: fmt.Sprintf("OSRM returned code %s: %s", out.Code, out.Message)}
	}

	best := out.Routes[0]
	route = &models.Route{
		DistanceMeters: best.Distance,
		DurationSecs:   best.Duration,
		Geometry:       best.Geometry.toCoordinates(),
		Steps:          []models.RouteStep{},
	}
	for _, leg := range best.Legs {
		for _, step := range leg.Steps {
			route.Steps = append(route.Steps, models.RouteStep{Instruction: osrmInstruction(step)})
		}
	}

	f.log.Debug("route calculated",
		zap.Stringer("start", start), zap.Stringer("end", end),
		zap.Float64("distance_meters", route.DistanceMeters))
	return route, nil
}

// osrmInstruction builds readable text from a maneuver since OSRM only
// returns the structured fields.
func osrmInstruction(s osrmStep) string {
	var verb string
	switch s.Maneuver.Type {
	case "depart":
		verb = "Head"
		if s.Maneuver.Modifier != "" {
			verb += " " + s.Maneuver.Modifier
		}
	case "arrive":
		if s.Name != "" {
			return "Arrive at " + s.Name
		}
		return "Arrive at your destination"
	case "roundabout", "rotary":
		verb = "Enter the roundabout"
	case "merge":
		verb = "Merge"
	case "on ramp":
		verb = "Take the ramp"
	case "off ramp":
		verb = "Take the exit"
	case "fork":
		verb = "Keep " + fallback(s.Maneuver.Modifier, "straight")
	case "end of road":
		verb = "At the end of the road turn " + fallback(s.Maneuver.Modifier, "straight")
	case "continue", "new name":
		verb = "Continue"
		if m := s.Maneuver.Modifier; m != "" && m != "straight" {
			verb += " " + m
		}
	default:
		switch m := s.Maneuver.Modifier; m {
		case "", "straight":
			verb = "Continue straight"
		case "uturn":
			verb = "Make a U-turn"
		default:
			verb = "Turn " + m
		}
	}

	if s.Name == "" {
		return verb
	}
	return strings.TrimSpace(verb) + " onto " + s.Name
}

func fallback(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
