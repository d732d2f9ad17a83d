package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"filltrip/internal/models"
)

type routeCacheRepository struct {
	store *Store
}

func (r *routeCacheRepository) Get(ctx context.Context, origin, dest models.Coordinates) (*models.RouteCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT origin_lat, origin_lng, dest_lat, dest_lng, route_json
	          FROM route_cache
	          WHERE origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`

	var entry models.RouteCacheEntry
	var routeJSON string
	err := r.store.db.QueryRowContext(ctx, query,
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng),
	).Scan(
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&routeJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get route cache entry: %w", err)
	}

	if err := json.Unmarshal([]byte(routeJSON), &entry.Route); err != nil {
		return nil, fmt.Errorf("failed to decode cached route: %w", err)
	}
	return &entry, nil
}

func (r *routeCacheRepository) Set(ctx context.Context, entry *models.RouteCacheEntry) error {
	routeJSON, err := json.Marshal(entry.Route)
	if err != nil {
		return fmt.Errorf("failed to encode route: %w", err)
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	query := `INSERT OR REPLACE INTO route_cache
	          (origin_lat, origin_lng, dest_lat, dest_lng, route_json, created_at)
	          VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.store.db.ExecContext(ctx, query,
		models.RoundCoordinate(entry.Origin.Lat), models.RoundCoordinate(entry.Origin.Lng),
		models.RoundCoordinate(entry.Destination.Lat), models.RoundCoordinate(entry.Destination.Lng),
		string(routeJSON), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set route cache entry: %w", err)
	}
	return nil
}

// DeleteOlderThan drops entries stored before cutoff
func (r *routeCacheRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM route_cache WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge route cache: %w", err)
	}
	return result.RowsAffected()
}

func (r *routeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM route_cache`); err != nil {
		return fmt.Errorf("failed to clear route cache: %w", err)
	}
	return nil
}
