package clusterstate

import (
	"slices"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

// LabelStats describes how raw clusterer groups were mapped onto durable clusters
type LabelStats struct {
	Matched  int `json:"matched"`  // groups that kept an existing cluster id
	Joined   int `json:"joined"`   // groups that joined a named cluster matched by another group
	Recycled int `json:"recycled"` // groups placed into an empty unnamed cluster
	Created  int `json:"created"`  // groups that received a new cluster id
	Vacated  int `json:"vacated"`  // previous clusters that were not matched by any group
	Noise    int `json:"noise"`    // faces left without a cluster
}

type overlap struct {
	group   int
	cluster int64
	count   int
}

// ApplyRawLabels maps raw clusterer output onto durable cluster ids.
//
// faceIDs are the faces that took part in the run and groups holds the faces of each
// raw group. Every group is matched to the previous cluster it shares the most
// uncorrected faces with. A group whose best overlap is a named cluster already taken
// by another group joins that cluster as well. Groups left without a match reuse an empty unnamed cluster
// no correction points to, otherwise they get a new id. Faces of faceIDs outside every
// group lose their cluster reference. Cluster names are never changed here.
func (s *State) ApplyRawLabels(faceIDs []int64, groups [][]int64) LabelStats {
	var stats LabelStats

	corrected := make(map[int64]struct{})
	referenced := make(map[int64]struct{})
	for _, c := range s.corrections {
		if c.IsExcluded || facematch.CanonicalName(c.PersonName) != "" {
			corrected[c.FaceID] = struct{}{}
		}
		if c.ManualClusterID != database.NoCluster {
			referenced[c.ManualClusterID] = struct{}{}
		}
	}

	groups = sortedGroups(groups)

	var candidates []overlap
	for g, members := range groups {
		counts := make(map[int64]int)
		for _, faceID := range members {
			if _, ok := corrected[faceID]; ok {
				continue
			}
			prev := s.faces[faceID]
			if prev != database.NoCluster && s.HasCluster(prev) {
				counts[prev]++
			}
		}
		for clusterID, n := range counts {
			candidates = append(candidates, overlap{group: g, cluster: clusterID, count: n})
		}
	}
	slices.SortFunc(candidates, func(a, b overlap) int {
		if a.count != b.count {
			return b.count - a.count
		}
		if a.cluster != b.cluster {
			return compareInt64(a.cluster, b.cluster)
		}
		return a.group - b.group
	})

	target := make([]int64, len(groups))
	usedCluster := make(map[int64]struct{})
	for _, c := range candidates {
		if target[c.group] != database.NoCluster {
			continue
		}
		if _, ok := usedCluster[c.cluster]; ok {
			continue
		}
		target[c.group] = c.cluster
		usedCluster[c.cluster] = struct{}{}
		stats.Matched++
	}

	// A named cluster stands for one person and may absorb several raw groups.
	best := make(map[int]int64, len(groups))
	for _, c := range candidates {
		if _, ok := best[c.group]; !ok {
			best[c.group] = c.cluster
		}
	}
	for g := range groups {
		clusterID, ok := best[g]
		if target[g] != database.NoCluster || !ok || s.clusters[clusterID].Name == "" {
			continue
		}
		target[g] = clusterID
		stats.Joined++
	}

	// Clusters whose members all take part in this run are vacated when unmatched.
	inRun := make(map[int64]struct{}, len(faceIDs))
	for _, id := range faceIDs {
		inRun[id] = struct{}{}
	}
	members := s.Members()
	var recyclable []int64
	for _, id := range s.ClusterIDs() {
		if _, ok := usedCluster[id]; ok {
			continue
		}
		if len(members[id]) > 0 {
			stats.Vacated++
		}
		if s.clusters[id].Name != "" {
			continue
		}
		if _, ok := referenced[id]; ok {
			continue
		}
		if !allIn(members[id], inRun) {
			continue
		}
		recyclable = append(recyclable, id)
	}

	for g := range groups {
		if target[g] != database.NoCluster {
			continue
		}
		if len(recyclable) > 0 {
			target[g] = recyclable[0]
			recyclable = recyclable[1:]
			stats.Recycled++
			continue
		}
		target[g] = s.NewCluster()
		stats.Created++
	}

	assigned := make(map[int64]int64, len(faceIDs))
	for g, members := range groups {
		for _, faceID := range members {
			assigned[faceID] = target[g]
		}
	}
	for _, faceID := range faceIDs {
		clusterID, ok := assigned[faceID]
		if !ok {
			stats.Noise++
		}
		s.SetFaceCluster(faceID, clusterID)
	}

	return stats
}

// sortedGroups returns non-empty groups with sorted members, ordered by their lowest face id.
func sortedGroups(groups [][]int64) [][]int64 {
	out := make([][]int64, 0, len(groups))
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		g = slices.Clone(g)
		slices.Sort(g)
		out = append(out, g)
	}
	slices.SortFunc(out, func(a, b []int64) int {
		return compareInt64(a[0], b[0])
	})
	return out
}

func allIn(ids []int64, set map[int64]struct{}) bool {
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
