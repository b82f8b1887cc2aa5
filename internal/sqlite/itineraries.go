package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"itinerary-optimizer/internal/database"
	"itinerary-optimizer/internal/models"
)

type itineraryRepository struct {
	store *Store
}

func (r *itineraryRepository) List(ctx context.Context, limit, offset int) ([]models.ItinerarySummary, int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var total int
	if err := r.store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM itineraries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count itineraries: %w", err)
	}

	query := `SELECT id, title, day_count, activity_count, updated_at
	          FROM itineraries
	          ORDER BY updated_at DESC
	          LIMIT ? OFFSET ?`

	rows, err := r.store.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query itineraries: %w", err)
	}
	defer rows.Close()

	out := []models.ItinerarySummary{}
	for rows.Next() {
		var s models.ItinerarySummary
		if err := rows.Scan(&s.ID, &s.Title, &s.Days, &s.Activities, &s.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan itinerary: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating itineraries: %w", err)
	}

	return out, total, nil
}

func (r *itineraryRepository) GetByID(ctx context.Context, id string) (*models.Itinerary, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var data string
	err := r.store.db.QueryRowContext(ctx, `SELECT data FROM itineraries WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get itinerary: %w", err)
	}

	var it models.Itinerary
	if err := json.Unmarshal([]byte(data), &it); err != nil {
		return nil, fmt.Errorf("failed to decode itinerary %s: %w", id, err)
	}
	return &it, nil
}

// Save inserts or replaces an itinerary. A missing id is generated.
func (r *itineraryRepository) Save(ctx context.Context, it *models.Itinerary) (*models.Itinerary, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now().UTC()
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = now
	}
	it.UpdatedAt = now

	data, err := json.Marshal(it)
	if err != nil {
		return nil, fmt.Errorf("failed to encode itinerary: %w", err)
	}

	query := `INSERT INTO itineraries (id, title, day_count, activity_count, data, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(id) DO UPDATE SET
	              title = excluded.title,
	              day_count = excluded.day_count,
	              activity_count = excluded.activity_count,
	              data = excluded.data,
	              updated_at = excluded.updated_at`

	_, err = r.store.db.ExecContext(ctx, query,
		it.ID, it.Title, len(it.Days), it.ActivityCount(), string(data), it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save itinerary: %w", err)
	}

	return it, nil
}

func (r *itineraryRepository) Delete(ctx context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	// Foreign key cascade removes the run history
	result, err := r.store.db.ExecContext(ctx, `DELETE FROM itineraries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete itinerary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return database.ErrNotFound
	}
	return nil
}
