package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"itinerary-optimizer/internal/models"
)

type runRepository struct {
	store *Store
}

const runColumns = `id, itinerary_id, fingerprint, state, success, residual_errors, warning_count, result, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.OptimizationRun, error) {
	var run models.OptimizationRun
	var result sql.NullString
	if err := row.Scan(
		&run.ID, &run.ItineraryID, &run.Fingerprint, &run.State, &run.Success,
		&run.ResidualErrors, &run.WarningCount, &result, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	if result.Valid {
		run.Result = []byte(result.String)
	}
	return &run, nil
}

func (r *runRepository) Create(ctx context.Context, run *models.OptimizationRun) (*models.OptimizationRun, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	run.CreatedAt = time.Now().UTC()

	var result *string
	if len(run.Result) > 0 {
		s := string(run.Result)
		result = &s
	}

	query := `INSERT INTO optimization_runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.store.db.ExecContext(ctx, query,
		run.ID, run.ItineraryID, run.Fingerprint, run.State, run.Success,
		run.ResidualErrors, run.WarningCount, result, run.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create optimization run: %w", err)
	}
	return run, nil
}

func (r *runRepository) GetByID(ctx context.Context, id string) (*models.OptimizationRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	row := r.store.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM optimization_runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get optimization run: %w", err)
	}
	return run, nil
}

// ListByItinerary returns the newest runs first. Results are omitted.
func (r *runRepository) ListByItinerary(ctx context.Context, itineraryID string, limit int) ([]models.OptimizationRun, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT ` + runColumns + `
	          FROM optimization_runs
	          WHERE itinerary_id = ?
	          ORDER BY created_at DESC
	          LIMIT ?`

	rows, err := r.store.db.QueryContext(ctx, query, itineraryID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization runs: %w", err)
	}
	defer rows.Close()

	runs := []models.OptimizationRun{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan optimization run: %w", err)
		}
		run.Result = nil
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating optimization runs: %w", err)
	}
	return runs, nil
}
