package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/kozaktomas/face-cluster/internal/database"
)

const clusterColumns = `id, COALESCE(name, ''), face_count, COALESCE(representative_face_id, 0), created_at, updated_at`

// ClusterRepository provides PostgreSQL-backed cluster storage.
type ClusterRepository struct {
	pool *Pool
}

// NewClusterRepository creates a new PostgreSQL cluster repository.
func NewClusterRepository(pool *Pool) *ClusterRepository {
	return &ClusterRepository{pool: pool}
}

// ListClusters returns all clusters ordered by id, tombstones included.
func (r *ClusterRepository) ListClusters(ctx context.Context) ([]database.Cluster, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+clusterColumns+" FROM clusters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()
	return scanClusters(rows)
}

// PageClusters returns clusters matching the query ordered by face count desc, id asc.
func (r *ClusterRepository) PageClusters(ctx context.Context, query database.ClusterQuery) ([]database.Cluster, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM clusters
		WHERE face_count >= $1 AND (NOT $2 OR name IS NOT NULL)
	`, query.MinFaces, query.NamedOnly).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count clusters: %w", err)
	}

	limit := sql.NullInt64{Int64: int64(query.Limit), Valid: query.Limit > 0}
	rows, err := r.pool.Query(ctx, "SELECT "+clusterColumns+`
		FROM clusters
		WHERE face_count >= $1 AND (NOT $2 OR name IS NOT NULL)
		ORDER BY face_count DESC, id
		LIMIT $3 OFFSET $4
	`, query.MinFaces, query.NamedOnly, limit, max(query.Offset, 0))
	if err != nil {
		return nil, 0, fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	clusters, err := scanClusters(rows)
	if err != nil {
		return nil, 0, err
	}
	return clusters, total, nil
}

// GetCluster retrieves a cluster by id.
func (r *ClusterRepository) GetCluster(ctx context.Context, id int64) (*database.Cluster, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+clusterColumns+" FROM clusters WHERE id = $1", id)
	c, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindClustersByName returns clusters bearing exactly the given name ordered by id.
func (r *ClusterRepository) FindClustersByName(ctx context.Context, name string) ([]database.Cluster, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+clusterColumns+" FROM clusters WHERE name = $1 ORDER BY id", name)
	if err != nil {
		return nil, fmt.Errorf("query clusters by name: %w", err)
	}
	defer rows.Close()
	return scanClusters(rows)
}

// RenameCluster sets a cluster's name, an empty name clears it.
func (r *ClusterRepository) RenameCluster(ctx context.Context, id int64, name string) error {
	res, err := r.pool.Exec(ctx,
		"UPDATE clusters SET name = NULLIF($2, ''), updated_at = NOW() WHERE id = $1", id, name)
	if err != nil {
		return fmt.Errorf("rename cluster: %w", err)
	}
	return expectRow(res, "cluster", id)
}

// SetRepresentative sets a cluster's representative face.
func (r *ClusterRepository) SetRepresentative(ctx context.Context, id, faceID int64) error {
	res, err := r.pool.Exec(ctx,
		"UPDATE clusters SET representative_face_id = NULLIF($2::bigint, 0), updated_at = NOW() WHERE id = $1",
		id, faceID)
	if err != nil {
		return fmt.Errorf("set representative: %w", err)
	}
	return expectRow(res, "cluster", id)
}

// ApplyChanges upserts clusters by id and rewrites face cluster references in
// a single transaction. Clusters are written first so faces can reference new ids.
func (r *ClusterRepository) ApplyChanges(ctx context.Context, changes database.ChangeSet) error {
	if changes.IsEmpty() {
		return nil
	}

	return r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		if err := upsertClusters(ctx, tx, changes.Clusters); err != nil {
			return err
		}
		return applyAssignments(ctx, tx, changes.Assignments)
	})
}

func upsertClusters(ctx context.Context, tx *sql.Tx, clusters []database.ClusterUpsert) error {
	if len(clusters) == 0 {
		return nil
	}
	ids := make([]int64, len(clusters))
	names := make([]string, len(clusters))
	counts := make([]int64, len(clusters))
	reps := make([]int64, len(clusters))
	for i, c := range clusters {
		ids[i], names[i], counts[i], reps[i] = c.ID, c.Name, int64(c.FaceCount), c.RepresentativeFaceID
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO clusters (id, name, face_count, representative_face_id)
		SELECT u.id, NULLIF(u.name, ''), u.face_count, NULLIF(u.rep, 0)
		FROM unnest($1::bigint[], $2::text[], $3::integer[], $4::bigint[]) AS u(id, name, face_count, rep)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			face_count = EXCLUDED.face_count,
			representative_face_id = EXCLUDED.representative_face_id,
			updated_at = NOW()
	`, pq.Array(ids), pq.Array(names), pq.Array(counts), pq.Array(reps))
	if err != nil {
		return fmt.Errorf("upsert clusters: %w", err)
	}
	return nil
}

func applyAssignments(ctx context.Context, tx *sql.Tx, assignments []database.FaceAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	faceIDs := make([]int64, len(assignments))
	clusterIDs := make([]int64, len(assignments))
	for i, a := range assignments {
		faceIDs[i], clusterIDs[i] = a.FaceID, a.ClusterID
	}

	_, err := tx.ExecContext(ctx, `
		UPDATE faces f SET cluster_id = NULLIF(u.cluster_id, 0)
		FROM unnest($1::bigint[], $2::bigint[]) AS u(face_id, cluster_id)
		WHERE f.id = u.face_id
	`, pq.Array(faceIDs), pq.Array(clusterIDs))
	if err != nil {
		return fmt.Errorf("update face assignments: %w", err)
	}
	return nil
}

func scanCluster(scanner interface{ Scan(...any) error }) (database.Cluster, error) {
	var c database.Cluster
	err := scanner.Scan(&c.ID, &c.Name, &c.FaceCount, &c.RepresentativeFaceID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, err
	}
	if err != nil {
		return c, fmt.Errorf("scan cluster: %w", err)
	}
	return c, nil
}

func scanClusters(rows *sql.Rows) ([]database.Cluster, error) {
	var clusters []database.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate clusters: %w", err)
	}
	return clusters, nil
}
