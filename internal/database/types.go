package database

import (
	"encoding/json"
	"time"
)

// NoCluster is the cluster reference of a face that belongs to no cluster.
const NoCluster int64 = 0

// BBox is a face bounding box in raw pixel coordinates.
type BBox struct {
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
}

// Photo represents a source photo that faces were detected in
type Photo struct {
	ID        int64
	FilePath  string
	FileHash  string
	Width     int
	Height    int
	FaceCount int
	CreatedAt time.Time
}

// Face represents a detected face stored in the database.
// The embedding never changes after creation; ClusterID is mutated only by
// clustering runs, reconciliation and explicit corrections.
type Face struct {
	ID         int64
	PhotoID    int64
	Embedding  []float32
	BBox       BBox
	Confidence float64
	ClusterID  int64 // NoCluster when unassigned
	CreatedAt  time.Time
}

// FaceEmbedding is the (face id, vector) pair supplied by an EmbeddingSource
type FaceEmbedding struct {
	FaceID    int64
	Embedding []float32
}

// FaceAssignment is the cluster reference of a single face
type FaceAssignment struct {
	FaceID    int64
	ClusterID int64 // NoCluster when unassigned
}

// Cluster represents a group of faces that likely belong to one person.
type Cluster struct {
	ID                   int64
	Name                 string // empty when nobody named the cluster yet
	FaceCount            int
	RepresentativeFaceID int64 // 0 when unset
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// ClusterQuery filters and paginates cluster listings
type ClusterQuery struct {
	MinFaces  int  // only clusters with at least this many faces
	NamedOnly bool // only clusters with a name
	Limit     int
	Offset    int
}

// Correction is a manual override for a single face. It is ground truth and is
// replayed on every reconciliation pass.
type Correction struct {
	FaceID          int64
	IsExcluded      bool
	PersonName      string
	ManualClusterID int64 // 0 when unset
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ClusterUpsert is the full desired row of a cluster. Applying it creates the
// cluster when the id is unknown.
type ClusterUpsert struct {
	ID                   int64
	Name                 string
	FaceCount            int
	RepresentativeFaceID int64
}

// ChangeSet is a batch of mutations that must be applied as one durable unit.
type ChangeSet struct {
	Clusters    []ClusterUpsert
	Assignments []FaceAssignment
}

// IsEmpty reports whether the change set has nothing to apply.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Clusters) == 0 && len(c.Assignments) == 0
}

// RunRecord is the persisted history entry of a clustering run.
type RunRecord struct {
	ID         string
	Eps        float64
	MinSamples int
	Finder     string
	Summary    json.RawMessage
	StartedAt  time.Time
	FinishedAt time.Time
}

// Stats holds overall database statistics
type Stats struct {
	TotalPhotos      int `json:"total_photos"`
	TotalFaces       int `json:"total_faces"`
	UnassignedFaces  int `json:"unassigned_faces"`
	TotalClusters    int `json:"total_clusters"` // clusters with at least one face
	NamedClusters    int `json:"named_clusters"` // named clusters with at least one face
	TotalCorrections int `json:"total_corrections"`
}
