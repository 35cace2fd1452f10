package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-cluster/internal/database"
)

const faceColumns = `id, photo_id, embedding, bbox, confidence, cluster_id, created_at`

// FaceRepository provides PostgreSQL-backed face and photo storage.
type FaceRepository struct {
	pool *Pool
}

// NewFaceRepository creates a new PostgreSQL face repository.
func NewFaceRepository(pool *Pool) *FaceRepository {
	return &FaceRepository{pool: pool}
}

// ListEmbeddings returns all face embeddings ordered by face id.
func (r *FaceRepository) ListEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, embedding FROM faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.FaceEmbedding
	for rows.Next() {
		var e database.FaceEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&e.FaceID, &vec); err != nil {
			return nil, fmt.Errorf("scan embedding: %w", err)
		}
		e.Embedding = vec.Slice()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embeddings: %w", err)
	}
	return out, nil
}

// EmbeddingDimension returns the dimension of the lowest id face's embedding, 0 when there are no faces.
func (r *FaceRepository) EmbeddingDimension(ctx context.Context) (int, error) {
	var dim int
	err := r.pool.QueryRow(ctx, "SELECT vector_dims(embedding) FROM faces ORDER BY id LIMIT 1").Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query embedding dimension: %w", err)
	}
	return dim, nil
}

// GetFace retrieves a face by id.
func (r *FaceRepository) GetFace(ctx context.Context, id int64) (*database.Face, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+faceColumns+" FROM faces WHERE id = $1", id)
	face, err := scanFaceRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("face %d: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &face, nil
}

// ListAssignments returns the cluster reference of every face ordered by face id.
func (r *FaceRepository) ListAssignments(ctx context.Context) ([]database.FaceAssignment, error) {
	rows, err := r.pool.Query(ctx, "SELECT id, COALESCE(cluster_id, 0) FROM faces ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []database.FaceAssignment
	for rows.Next() {
		var a database.FaceAssignment
		if err := rows.Scan(&a.FaceID, &a.ClusterID); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignments: %w", err)
	}
	return out, nil
}

// GetClusterFaces returns the faces of a cluster ordered by id.
func (r *FaceRepository) GetClusterFaces(ctx context.Context, clusterID int64) ([]database.Face, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+faceColumns+" FROM faces WHERE cluster_id = $1 ORDER BY id", clusterID)
	if err != nil {
		return nil, fmt.Errorf("query cluster faces: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

// GetPhotoFaces returns the faces detected in a photo ordered by id.
func (r *FaceRepository) GetPhotoFaces(ctx context.Context, photoID int64) ([]database.Face, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+faceColumns+" FROM faces WHERE photo_id = $1 ORDER BY id", photoID)
	if err != nil {
		return nil, fmt.Errorf("query photo faces: %w", err)
	}
	defer rows.Close()
	return scanFaces(rows)
}

// CountFacesByCluster returns the number of faces per referenced cluster.
func (r *FaceRepository) CountFacesByCluster(ctx context.Context) (map[int64]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT cluster_id, COUNT(*)
		FROM faces
		WHERE cluster_id IS NOT NULL
		GROUP BY cluster_id
	`)
	if err != nil {
		return nil, fmt.Errorf("query face counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("scan face count: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face counts: %w", err)
	}
	return counts, nil
}

// UpsertPhoto stores a photo keyed by its file path and returns its id.
func (r *FaceRepository) UpsertPhoto(ctx context.Context, photo database.Photo) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO photos (file_path, file_hash, width, height)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (file_path) DO UPDATE SET
			file_hash = EXCLUDED.file_hash,
			width = EXCLUDED.width,
			height = EXCLUDED.height
		RETURNING id
	`, photo.FilePath, photo.FileHash, photo.Width, photo.Height).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert photo %s: %w", photo.FilePath, err)
	}
	return id, nil
}

// InsertFace stores a newly detected face without a cluster and returns its id.
func (r *FaceRepository) InsertFace(ctx context.Context, face database.Face) (int64, error) {
	bbox := []int64{int64(face.BBox.Top), int64(face.BBox.Right), int64(face.BBox.Bottom), int64(face.BBox.Left)}

	var id int64
	err := r.pool.WithTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO faces (photo_id, embedding, bbox, confidence)
			VALUES ($1, $2::vector, $3, $4)
			RETURNING id
		`, face.PhotoID, pgvector.NewVector(face.Embedding), pq.Array(bbox), face.Confidence).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert face: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "UPDATE photos SET face_count = face_count + 1 WHERE id = $1", face.PhotoID); err != nil {
			return fmt.Errorf("update photo face count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// expectRow maps an update that touched no row to database.ErrNotFound.
func expectRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, database.ErrNotFound)
	}
	return nil
}

func scanFaceRow(scanner interface{ Scan(...any) error }) (database.Face, error) {
	var face database.Face
	var vec pgvector.Vector
	var bbox pq.Int64Array
	var clusterID sql.NullInt64

	err := scanner.Scan(&face.ID, &face.PhotoID, &vec, &bbox, &face.Confidence, &clusterID, &face.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return face, err
	}
	if err != nil {
		return face, fmt.Errorf("scan face: %w", err)
	}

	face.Embedding = vec.Slice()
	if len(bbox) == 4 {
		face.BBox = database.BBox{Top: int(bbox[0]), Right: int(bbox[1]), Bottom: int(bbox[2]), Left: int(bbox[3])}
	}
	if clusterID.Valid {
		face.ClusterID = clusterID.Int64
	}
	return face, nil
}

func scanFaces(rows *sql.Rows) ([]database.Face, error) {
	var faces []database.Face
	for rows.Next() {
		face, err := scanFaceRow(rows)
		if err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate faces: %w", err)
	}
	return faces, nil
}
