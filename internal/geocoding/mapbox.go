package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

const mapboxPlacesPath = "/geocoding/v5/mapbox.places/"

type mapboxGeocoder struct {
	baseURL    string
	token      string
	country    string
	httpClient *http.Client
	log        *zap.Logger
}

type mapboxFeature struct {
	PlaceName string    `json:"place_name"`
	Center    []float64 `json:"center"`
}

type mapboxPlacesResponse struct {
	Features []mapboxFeature `json:"features"`
	Message  string          `json:"message,omitempty"`
}

// NewMapboxGeocoder creates a geocoder backed by the Mapbox Places API,
// filtered to a single country
func NewMapboxGeocoder(baseURL, token, country string, log *zap.Logger) Geocoder {
	if baseURL == "" {
		baseURL = "https://api.mapbox.com"
	}
	return &mapboxGeocoder{
		baseURL: baseURL,
		token:   token,
		country: country,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.Named("mapbox_geocoder"),
	}
}

func (g *mapboxGeocoder) Search(ctx context.Context, query string, limit int) (results []models.PlaceCandidate, err error) {
	defer func() {
		metrics.GeocodeRequestsTotal.WithLabelValues("mapbox", metrics.Outcome(err)).Inc()
	}()

	params := url.Values{}
	params.Set("access_token", g.token)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("autocomplete", "true")
	if g.country != "" {
		params.Set("country", g.country)
	}
	queryURL := g.baseURL + mapboxPlacesPath + url.PathEscape(query) + ".json?" + params.Encode()
	g.log.Debug("search request", zap.String("query", query), zap.Int("limit", limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.log.Warn("search request failed", zap.String("query", query), zap.Error(err))
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.log.Warn("search API error", zap.String("query", query), zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &ErrGeocodingFailed{
			Query:  query,
			Reason: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var out mapboxPlacesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}

	// center is [lng, lat]
	valid := lo.Filter(out.Features, func(f mapboxFeature, _ int) bool {
		return len(f.Center) == 2
	})
	results = lo.Map(valid, func(f mapboxFeature, _ int) models.PlaceCandidate {
		return models.PlaceCandidate{
			Coords:      models.Coordinates{Lng: f.Center[0], Lat: f.Center[1]},
			DisplayName: f.PlaceName,
		}
	})
	if len(results) > limit {
		results = results[:limit]
	}

	g.log.Debug("search response", zap.String("query", query), zap.Int("results_count", len(results)))
	return results, nil
}
