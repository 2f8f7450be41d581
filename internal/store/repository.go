// Package store persists screening results so reports and the HTTP API
// can read past runs without re-screening.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// Repository handles screening result persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a screening result repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Schema is the DDL for the screening_results table, applied by the
// migrate command.
const Schema = `
CREATE TABLE IF NOT EXISTS screening_results (
	run_date     DATE PRIMARY KEY,
	window_start DATE NOT NULL,
	window_end   DATE NOT NULL,
	result       JSONB NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// SaveResult upserts one run keyed by run date; re-running a day
// replaces that day's result.
func (r *Repository) SaveResult(ctx context.Context, result *contracts.ScreeningResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	query := `
		INSERT INTO screening_results (run_date, window_start, window_end, result)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_date) DO UPDATE SET
			window_start = EXCLUDED.window_start,
			window_end = EXCLUDED.window_end,
			result = EXCLUDED.result,
			created_at = now()
	`
	if _, err := r.pool.Exec(ctx, query,
		result.RunDate, result.WindowStart, result.WindowEnd, payload,
	); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// GetResult retrieves the run for a specific date.
func (r *Repository) GetResult(ctx context.Context, runDate time.Time) (*contracts.ScreeningResult, error) {
	return r.queryOne(ctx, `
		SELECT result FROM screening_results WHERE run_date = $1
	`, runDate)
}

// LatestResult retrieves the most recent run.
func (r *Repository) LatestResult(ctx context.Context) (*contracts.ScreeningResult, error) {
	return r.queryOne(ctx, `
		SELECT result FROM screening_results ORDER BY run_date DESC LIMIT 1
	`)
}

// ListRunDates returns the most recent run dates, newest first.
func (r *Repository) ListRunDates(ctx context.Context, limit int) ([]time.Time, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT run_date FROM screening_results ORDER BY run_date DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list run dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan run date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ErrNotFound is returned when no stored run matches the query.
var ErrNotFound = errors.New("screening result not found")

func (r *Repository) queryOne(ctx context.Context, query string, args ...interface{}) (*contracts.ScreeningResult, error) {
	var payload []byte
	err := r.pool.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}

	var result contracts.ScreeningResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}
	return &result, nil
}
