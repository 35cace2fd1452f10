package pipeline

import (
	"slices"
	"time"

	"github.com/kozaktomas/face-cluster/internal/bookkeeping"
	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/reconcile"
)

// ClusterSize is one entry of the top clusters list
type ClusterSize struct {
	ClusterID int64  `json:"cluster_id"`
	Name      string `json:"name,omitempty"`
	FaceCount int    `json:"face_count"`
}

// Report is the summary of a full clustering run
type Report struct {
	RunID      string  `json:"run_id,omitempty"`
	DryRun     bool    `json:"dry_run"`
	Eps        float64 `json:"eps"`
	MinSamples int     `json:"min_samples"`
	Finder     string  `json:"finder"`

	TotalFaces         int     `json:"total_faces"`
	Dimension          int     `json:"dimension"`
	TotalClusters      int     `json:"total_clusters"` // raw clusters found by the clusterer
	ClusteredFaces     int     `json:"clustered_faces"`
	NoiseFaces         int     `json:"noise_faces"`
	AverageClusterSize float64 `json:"average_cluster_size"`

	Labels      clusterstate.LabelStats `json:"labels"`
	Corrections reconcile.Result        `json:"corrections"`
	Bookkeeping bookkeeping.Result      `json:"bookkeeping"`
	Final       clusterstate.Summary    `json:"final"`
	TopClusters []ClusterSize           `json:"top_clusters"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration_ns"`
}

// ReconcileReport is the summary of a reconcile-only pass
type ReconcileReport struct {
	Corrections reconcile.Result     `json:"corrections"`
	Bookkeeping bookkeeping.Result   `json:"bookkeeping"`
	Final       clusterstate.Summary `json:"final"`
	TopClusters []ClusterSize        `json:"top_clusters"`
}

// topClusters returns the n largest non-empty clusters, ties by lowest id.
func topClusters(s *clusterstate.State, n int) []ClusterSize {
	if n <= 0 {
		return nil
	}
	var sizes []ClusterSize
	for id, faces := range s.Members() {
		c, _ := s.Cluster(id)
		sizes = append(sizes, ClusterSize{ClusterID: id, Name: c.Name, FaceCount: len(faces)})
	}
	slices.SortFunc(sizes, func(a, b ClusterSize) int {
		if a.FaceCount != b.FaceCount {
			return b.FaceCount - a.FaceCount
		}
		switch {
		case a.ClusterID < b.ClusterID:
			return -1
		case a.ClusterID > b.ClusterID:
			return 1
		}
		return 0
	})
	if len(sizes) > n {
		sizes = sizes[:n]
	}
	return sizes
}
