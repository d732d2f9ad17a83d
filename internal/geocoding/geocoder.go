package geocoding

import (
	"context"
	"fmt"

	"filltrip/internal/models"
)

// Geocoder resolves free-text place queries into ranked candidates
type Geocoder interface {
	Search(ctx context.Context, query string, limit int) ([]models.PlaceCandidate, error)
}

// ErrGeocodingFailed is returned when a place query cannot be resolved
type ErrGeocodingFailed struct {
	Query  string
	Reason string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for query: %s - %s", e.Query, e.Reason)
}

const userAgent = "FillTrip/1.0"
