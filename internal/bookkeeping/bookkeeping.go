// Package bookkeeping keeps derived cluster fields consistent with face assignments.
package bookkeeping

import (
	"slices"

	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/database"
)

// Result summarizes a bookkeeping pass
type Result struct {
	Clusters               int `json:"clusters"`
	EmptyClusters          int `json:"empty_clusters"`
	CountsChanged          int `json:"counts_changed"`
	RepresentativesChanged int `json:"representatives_changed"`
	RestoredClusters       int `json:"restored_clusters"` // clusters recreated because faces referenced them
}

// Run recomputes face_count and the representative face of every cluster,
// empty clusters included. A representative that is still a member is kept,
// otherwise the lowest member face id is chosen, or none for empty clusters.
func Run(s *clusterstate.State) Result {
	var res Result

	members := s.Members()
	for id := range members {
		if s.EnsureCluster(id) {
			res.RestoredClusters++
		}
	}

	for _, id := range s.ClusterIDs() {
		res.Clusters++
		faces := members[id]
		if len(faces) == 0 {
			res.EmptyClusters++
		}

		if s.SetFaceCount(id, len(faces)) {
			res.CountsChanged++
		}

		c, _ := s.Cluster(id)
		rep := representative(c.RepresentativeFaceID, faces)
		if s.SetRepresentative(id, rep) {
			res.RepresentativesChanged++
		}
	}

	return res
}

func representative(current int64, faces []int64) int64 {
	if len(faces) == 0 {
		return 0
	}
	if current != 0 {
		for _, f := range faces {
			if f == current {
				return current
			}
		}
	}
	return faces[0]
}

// Check reports clusters whose stored fields disagree with the assignments
// without changing anything.
func Check(s *clusterstate.State) []database.ClusterUpsert {
	members := s.Members()
	var stale []database.ClusterUpsert
	for _, id := range s.ClusterIDs() {
		c, _ := s.Cluster(id)
		faces := members[id]
		want := database.ClusterUpsert{
			ID:                   id,
			Name:                 c.Name,
			FaceCount:            len(faces),
			RepresentativeFaceID: representative(c.RepresentativeFaceID, faces),
		}
		if want.FaceCount != c.FaceCount || want.RepresentativeFaceID != c.RepresentativeFaceID {
			stale = append(stale, want)
		}
	}
	return stale
}

// CountDrift returns the ids of clusters whose membership in the snapshot differs
// from counts, the per-cluster face counts aggregated by the store. A non-empty
// result means face assignments changed while the snapshot was loaded.
func CountDrift(s *clusterstate.State, counts map[int64]int) []int64 {
	members := s.Members()
	var drift []int64
	for id, n := range counts {
		if len(members[id]) != n {
			drift = append(drift, id)
		}
	}
	for id, faces := range members {
		if _, ok := counts[id]; !ok && len(faces) > 0 {
			drift = append(drift, id)
		}
	}
	slices.Sort(drift)
	return drift
}
