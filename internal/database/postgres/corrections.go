package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-cluster/internal/database"
)

const correctionColumns = `face_id, is_excluded, COALESCE(person_name, ''), COALESCE(manual_cluster_id, 0), created_at, updated_at`

// CorrectionRepository provides PostgreSQL-backed storage of manual corrections.
type CorrectionRepository struct {
	pool *Pool
}

// NewCorrectionRepository creates a new PostgreSQL correction repository.
func NewCorrectionRepository(pool *Pool) *CorrectionRepository {
	return &CorrectionRepository{pool: pool}
}

// ListCorrections returns all corrections ordered by face id.
func (r *CorrectionRepository) ListCorrections(ctx context.Context) ([]database.Correction, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+correctionColumns+" FROM face_corrections ORDER BY face_id")
	if err != nil {
		return nil, fmt.Errorf("query corrections: %w", err)
	}
	defer rows.Close()

	var out []database.Correction
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corrections: %w", err)
	}
	return out, nil
}

// GetCorrection retrieves the correction of a face.
func (r *CorrectionRepository) GetCorrection(ctx context.Context, faceID int64) (*database.Correction, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+correctionColumns+" FROM face_corrections WHERE face_id = $1", faceID)
	c, err := scanCorrection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("correction for face %d: %w", faceID, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCorrection creates or replaces the correction of a face.
func (r *CorrectionRepository) UpsertCorrection(ctx context.Context, c database.Correction) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO face_corrections (face_id, is_excluded, person_name, manual_cluster_id)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4::bigint, 0))
		ON CONFLICT (face_id) DO UPDATE SET
			is_excluded = EXCLUDED.is_excluded,
			person_name = EXCLUDED.person_name,
			manual_cluster_id = EXCLUDED.manual_cluster_id,
			updated_at = NOW()
	`, c.FaceID, c.IsExcluded, c.PersonName, c.ManualClusterID)
	if err != nil {
		return fmt.Errorf("upsert correction for face %d: %w", c.FaceID, err)
	}
	return nil
}

// DeleteCorrection removes the correction of a face and reports whether one existed.
func (r *CorrectionRepository) DeleteCorrection(ctx context.Context, faceID int64) (bool, error) {
	res, err := r.pool.Exec(ctx, "DELETE FROM face_corrections WHERE face_id = $1", faceID)
	if err != nil {
		return false, fmt.Errorf("delete correction for face %d: %w", faceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func scanCorrection(scanner interface{ Scan(...any) error }) (database.Correction, error) {
	var c database.Correction
	err := scanner.Scan(&c.FaceID, &c.IsExcluded, &c.PersonName, &c.ManualClusterID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("scan correction: %w", err)
	}
	return c, nil
}
