package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"itinerary-optimizer/internal/models"
)

type geocodeCacheRepository struct {
	store *Store
}

func (r *geocodeCacheRepository) Get(ctx context.Context, query string) (*models.GeocodeCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	q := `SELECT query, lat, lng, display_name, city, created_at FROM geocode_cache WHERE query = ?`

	var e models.GeocodeCacheEntry
	err := r.store.db.QueryRowContext(ctx, q, query).Scan(
		&e.Query, &e.Coords.Lat, &e.Coords.Lng, &e.DisplayName, &e.City, &e.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geocode cache entry: %w", err)
	}
	return &e, nil
}

func (r *geocodeCacheRepository) Set(ctx context.Context, entry *models.GeocodeCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	q := `INSERT OR REPLACE INTO geocode_cache (query, lat, lng, display_name, city, created_at)
	      VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.store.db.ExecContext(ctx, q,
		entry.Query, entry.Coords.Lat, entry.Coords.Lng, entry.DisplayName, entry.City, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to set geocode cache entry: %w", err)
	}
	return nil
}

func (r *geocodeCacheRepository) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	result, err := r.store.db.ExecContext(ctx, `DELETE FROM geocode_cache`)
	if err != nil {
		return fmt.Errorf("failed to clear geocode cache: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		log.Printf("[CACHE] Cleared geocode cache: entries=%d", n)
	}
	return nil
}
