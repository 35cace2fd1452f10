package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
)

// RunRepository stores clustering run history.
type RunRepository struct {
	pool *Pool
}

// NewRunRepository creates a new PostgreSQL run repository.
func NewRunRepository(pool *Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

// SaveRun stores a run record.
func (r *RunRepository) SaveRun(ctx context.Context, run database.RunRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clustering_runs (id, eps, min_samples, finder, summary, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, run.ID, run.Eps, run.MinSamples, run.Finder, []byte(run.Summary), run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (r *RunRepository) ListRuns(ctx context.Context, limit int) ([]database.RunRecord, error) {
	if limit <= 0 {
		limit = constants.DefaultRunHistory
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, eps, min_samples, finder, summary, started_at, finished_at
		FROM clustering_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []database.RunRecord
	for rows.Next() {
		var run database.RunRecord
		var summary []byte
		if err := rows.Scan(&run.ID, &run.Eps, &run.MinSamples, &run.Finder, &summary,
			&run.StartedAt, &run.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Summary = summary
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
