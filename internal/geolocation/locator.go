package geolocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"filltrip/internal/models"
)

// Locator resolves the device position. highAccuracy is passed through
// to backends that can honor it.
type Locator interface {
	Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error)
}

// ErrUnavailable is returned when no position source is configured
var ErrUnavailable = errors.New("position unavailable")

// ErrLocateFailed carries the message reported by the position source
type ErrLocateFailed struct {
	Message string
}

func (e *ErrLocateFailed) Error() string {
	return e.Message
}

type ipAPILocator struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

type ipAPIResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
	Country string  `json:"country"`
}

// NewIPLocator creates a locator that approximates the position from the
// caller's public IP using an ip-api compatible endpoint. IP lookups are
// coarse regardless of highAccuracy.
func NewIPLocator(baseURL string, log *zap.Logger) Locator {
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	return &ipAPILocator{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log.Named("geolocation"),
	}
}

func (l *ipAPILocator) Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/json?fields=status,message,lat,lon,city,country", nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Coordinates{}, ctx.Err()
		}
		l.log.Warn("location request failed", zap.Error(err))
		return models.Coordinates{}, &ErrLocateFailed{Message: "location service unreachable"}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.log.Warn("location API error", zap.Int("status", resp.StatusCode))
		return models.Coordinates{}, &ErrLocateFailed{Message: fmt.Sprintf("location service returned HTTP %d", resp.StatusCode)}
	}

	var out ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Coordinates{}, &ErrLocateFailed{Message: "invalid location response"}
	}
	if out.Status != "success" {
		msg := out.Message
		if msg == "" {
			msg = "location lookup failed"
		}
		return models.Coordinates{}, &ErrLocateFailed{Message: msg}
	}

	l.log.Debug("located", zap.String("city", out.City), zap.String("country", out.Country))
	return models.Coordinates{Lng: out.Lon, Lat: out.Lat}, nil
}

// staticLocator always reports the same position, or ErrUnavailable when nil
type staticLocator struct {
	coords *models.Coordinates
}

// NewStaticLocator returns a Locator fixed at c. A nil c makes every
// Locate call fail with ErrUnavailable.
func NewStaticLocator(c *models.Coordinates) Locator {
	return &staticLocator{coords: c}
}

func (l *staticLocator) Locate(ctx context.Context, highAccuracy bool) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	if l.coords == nil {
		return models.Coordinates{}, ErrUnavailable
	}
	return *l.coords, nil
}
