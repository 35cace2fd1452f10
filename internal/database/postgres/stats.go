package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// StatsRepository computes aggregate statistics.
type StatsRepository struct {
	pool *Pool
}

// NewStatsRepository creates a new PostgreSQL stats repository.
func NewStatsRepository(pool *Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// GetStats returns photo, face, cluster and correction counts.
func (r *StatsRepository) GetStats(ctx context.Context) (*database.Stats, error) {
	var s database.Stats
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM photos),
			(SELECT COUNT(*) FROM faces),
			(SELECT COUNT(*) FROM faces WHERE cluster_id IS NULL),
			(SELECT COUNT(DISTINCT cluster_id) FROM faces WHERE cluster_id IS NOT NULL),
			(SELECT COUNT(*) FROM clusters c
			 WHERE c.name IS NOT NULL AND EXISTS (SELECT 1 FROM faces f WHERE f.cluster_id = c.id)),
			(SELECT COUNT(*) FROM face_corrections)
	`).Scan(&s.TotalPhotos, &s.TotalFaces, &s.UnassignedFaces, &s.TotalClusters, &s.NamedClusters, &s.TotalCorrections)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	return &s, nil
}
