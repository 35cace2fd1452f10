package database

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by single-row lookups when the row does not exist.
var ErrNotFound = errors.New("not found")

// ErrRunInProgress is returned when another clustering run holds the run lock.
var ErrRunInProgress = errors.New("clustering run in progress")

// ErrNameTaken is returned when another cluster already bears the requested name.
var ErrNameTaken = errors.New("name already used by another cluster")

// CheckNameAvailable returns ErrNameTaken when a cluster other than id bears name.
// Names must be canonical. An empty name is always available.
func CheckNameAvailable(ctx context.Context, clusters ClusterReader, id int64, name string) error {
	if name == "" {
		return nil
	}
	holders, err := clusters.FindClustersByName(ctx, name)
	if err != nil {
		return err
	}
	for _, c := range holders {
		if c.ID != id {
			return fmt.Errorf("%w: cluster %d is %q", ErrNameTaken, c.ID, name)
		}
	}
	return nil
}

// EmbeddingSource supplies the (face id, vector) pairs to cluster.
type EmbeddingSource interface {
	// ListEmbeddings returns all face embeddings ordered by face id
	ListEmbeddings(ctx context.Context) ([]FaceEmbedding, error)
}

// FaceReader provides read-only access to faces and their assignments
type FaceReader interface {
	EmbeddingSource

	// GetFace retrieves a face by id, returns ErrNotFound if missing
	GetFace(ctx context.Context, id int64) (*Face, error)
	// ListAssignments returns the cluster reference of every face ordered by face id
	ListAssignments(ctx context.Context) ([]FaceAssignment, error)
	// GetClusterFaces returns the faces currently referencing a cluster ordered by id
	GetClusterFaces(ctx context.Context, clusterID int64) ([]Face, error)
	// GetPhotoFaces returns the faces detected in a photo ordered by id
	GetPhotoFaces(ctx context.Context, photoID int64) ([]Face, error)
	// EmbeddingDimension returns the length of the lowest id face's embedding, 0 without faces
	EmbeddingDimension(ctx context.Context) (int, error)
	// CountFacesByCluster returns the number of faces per referenced cluster
	CountFacesByCluster(ctx context.Context) (map[int64]int, error)
}

// FaceWriter provides write access to faces
type FaceWriter interface {
	FaceReader

	// UpsertPhoto stores a photo by file path and returns its id
	UpsertPhoto(ctx context.Context, photo Photo) (int64, error)
	// InsertFace stores a newly detected face and returns its id
	InsertFace(ctx context.Context, face Face) (int64, error)
}

// ClusterReader provides read-only access to clusters
type ClusterReader interface {
	// ListClusters returns all known clusters ordered by id, including empty ones
	ListClusters(ctx context.Context) ([]Cluster, error)
	// PageClusters returns clusters matching the query, largest first, and the total match count
	PageClusters(ctx context.Context, query ClusterQuery) ([]Cluster, int, error)
	// GetCluster retrieves a cluster by id, returns ErrNotFound if missing
	GetCluster(ctx context.Context, id int64) (*Cluster, error)
	// FindClustersByName returns clusters bearing exactly the given name ordered by id
	FindClustersByName(ctx context.Context, name string) ([]Cluster, error)
}

// ClusterWriter provides write access to cluster metadata
type ClusterWriter interface {
	ClusterReader

	// RenameCluster sets or clears (empty name) a cluster's name
	RenameCluster(ctx context.Context, id int64, name string) error
	// SetRepresentative sets a cluster's representative face
	SetRepresentative(ctx context.Context, id, faceID int64) error
	// ApplyChanges applies cluster upserts and face assignments in one transaction
	ApplyChanges(ctx context.Context, changes ChangeSet) error
}

// CorrectionReader provides read-only access to manual corrections
type CorrectionReader interface {
	// ListCorrections returns all corrections ordered by face id
	ListCorrections(ctx context.Context) ([]Correction, error)
	// GetCorrection retrieves the correction for a face, returns ErrNotFound if missing
	GetCorrection(ctx context.Context, faceID int64) (*Correction, error)
}

// CorrectionWriter provides write access to manual corrections
type CorrectionWriter interface {
	CorrectionReader

	// UpsertCorrection creates or replaces the correction for a face
	UpsertCorrection(ctx context.Context, correction Correction) error
	// DeleteCorrection removes the correction for a face, reports whether one existed
	DeleteCorrection(ctx context.Context, faceID int64) (bool, error)
}

// RunRecorder persists clustering run history
type RunRecorder interface {
	// SaveRun stores a run record
	SaveRun(ctx context.Context, run RunRecord) error
	// ListRuns returns the most recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]RunRecord, error)
}

// RunLocker guards the persist + reconcile + bookkeeping window against
// concurrent runs and interactive correction writes.
type RunLocker interface {
	// AcquireRunLock takes the exclusive run lock or returns ErrRunInProgress
	AcquireRunLock(ctx context.Context) (release func(), err error)
	// RunInProgress reports whether some session holds the run lock
	RunInProgress(ctx context.Context) (bool, error)
}

// StatsReader provides aggregate statistics
type StatsReader interface {
	GetStats(ctx context.Context) (*Stats, error)
}

// Store is the full persistence contract required by the clustering engine.
type Store interface {
	FaceWriter
	ClusterWriter
	CorrectionWriter
	RunRecorder
	RunLocker
	StatsReader
}
