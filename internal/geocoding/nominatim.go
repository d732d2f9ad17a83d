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

	"go.uber.org/zap"

	"filltrip/internal/metrics"
	"filltrip/internal/models"
)

type nominatimGeocoder struct {
	baseURL     string
	country     string
	httpClient  *http.Client
	rateLimiter *time.Ticker
	log         *zap.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim geocoder limited to one request
// per second, as required by the public instance's usage policy
func NewNominatimGeocoder(baseURL, country string, log *zap.Logger) Geocoder {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	return &nominatimGeocoder{
		baseURL: baseURL,
		country: country,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		rateLimiter: time.NewTicker(1 * time.Second),
		log:         log.Named("nominatim"),
	}
}

func (g *nominatimGeocoder) Search(ctx context.Context, query string, limit int) (results []models.PlaceCandidate, err error) {
	defer func() {
		metrics.GeocodeRequestsTotal.WithLabelValues("nominatim", metrics.Outcome(err)).Inc()
	}()

	select {
	case <-g.rateLimiter.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	if g.country != "" {
		params.Set("countrycodes", g.country)
	}
	queryURL := fmt.Sprintf("%s/search?%s", g.baseURL, params.Encode())
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

	var raw []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		g.log.Warn("failed to decode search response", zap.String("query", query), zap.Error(err))
		return nil, &ErrGeocodingFailed{Query: query, Reason: err.Error()}
	}

	results = make([]models.PlaceCandidate, 0, len(raw))
	for _, r := range raw {
		lat, err := strconv.ParseFloat(r.Lat, 64)
		if err != nil {
			g.log.Debug("skipping result with invalid latitude", zap.String("lat", r.Lat))
			continue
		}
		lng, err := strconv.ParseFloat(r.Lon, 64)
		if err != nil {
			g.log.Debug("skipping result with invalid longitude", zap.String("lon", r.Lon))
			continue
		}
		results = append(results, models.PlaceCandidate{
			Coords:      models.Coordinates{Lng: lng, Lat: lat},
			DisplayName: r.DisplayName,
		})
	}
	if len(results) > limit {
		results = results[:limit]
	}

	g.log.Debug("search response", zap.String("query", query), zap.Int("results_count", len(results)))
	return results, nil
}
