// Package reconcile replays manual corrections on top of freshly clustered state.
package reconcile

import (
	"log/slog"
	"slices"

	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

// Options configures a Reconciler
type Options struct {
	// MergeDuplicateNames merges clusters sharing a name into the lowest id one
	MergeDuplicateNames bool
	Logger              *slog.Logger
}

// NameConflict lists clusters that bear the same name after replay
type NameConflict struct {
	Name       string  `json:"name"`
	ClusterIDs []int64 `json:"cluster_ids"`
}

// Result summarizes a reconciliation pass
type Result struct {
	Applied         int            `json:"applied"`           // corrections that changed state
	Skipped         int            `json:"skipped"`           // corrections whose face no longer exists
	Excluded        int            `json:"excluded"`          // exclusion corrections seen
	Named           int            `json:"named"`             // naming corrections seen
	CreatedClusters []int64        `json:"created_clusters"`  // clusters created for new names
	MergedFaces     int            `json:"merged_faces"`      // faces moved by duplicate-name merges
	MergedClusters  int            `json:"merged_clusters"`   // clusters emptied by duplicate-name merges
	Conflicts       []NameConflict `json:"conflicts,omitempty"`
}

// Reconciler applies corrections to a cluster state snapshot.
type Reconciler struct {
	opts Options
	log  *slog.Logger
}

// New creates a Reconciler.
func New(opts Options) *Reconciler {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{opts: opts, log: log}
}

// Apply replays every correction in ascending face id order.
//
// Excluded faces lose their cluster. A named face joins the lowest id cluster
// bearing that name, else its manual cluster when it still exists, else a new
// cluster; the target then takes the correction's name. Corrections for
// missing faces are skipped. Applying the same corrections twice changes nothing.
func (r *Reconciler) Apply(s *clusterstate.State) Result {
	var res Result

	// clusters named during this pass, a later correction may not rename them
	claimed := make(map[int64]string)

	for _, c := range s.Corrections() {
		if !s.HasFace(c.FaceID) {
			res.Skipped++
			r.log.Debug("skipping correction for missing face", "face_id", c.FaceID)
			continue
		}

		if c.IsExcluded {
			res.Excluded++
			if s.SetFaceCluster(c.FaceID, database.NoCluster) {
				res.Applied++
			}
			continue
		}

		name := facematch.CanonicalName(c.PersonName)
		if name == "" {
			continue
		}
		res.Named++

		target, created := r.resolve(s, name, c.ManualClusterID, claimed)
		if created {
			res.CreatedClusters = append(res.CreatedClusters, target)
		}
		claimed[target] = name

		changed := s.SetFaceCluster(c.FaceID, target)
		if s.SetName(target, name) {
			changed = true
		}
		if changed {
			res.Applied++
		}
	}

	conflicts := duplicateNames(s)
	if len(conflicts) == 0 {
		return res
	}
	if !r.opts.MergeDuplicateNames {
		res.Conflicts = conflicts
		for _, c := range conflicts {
			r.log.Warn("clusters share a name", "name", c.Name, "cluster_ids", c.ClusterIDs)
		}
		return res
	}

	members := s.Members()
	for _, c := range conflicts {
		keep := c.ClusterIDs[0]
		for _, id := range c.ClusterIDs[1:] {
			for _, faceID := range members[id] {
				if s.SetFaceCluster(faceID, keep) {
					res.MergedFaces++
				}
			}
			s.SetName(id, "")
			res.MergedClusters++
		}
		r.log.Info("merged clusters sharing a name", "name", c.Name, "into", keep, "from", c.ClusterIDs[1:])
	}

	return res
}

func (r *Reconciler) resolve(s *clusterstate.State, name string, manual int64, claimed map[int64]string) (int64, bool) {
	if ids := s.ClustersByName(name); len(ids) > 0 {
		return ids[0], false
	}
	if manual != database.NoCluster && s.HasCluster(manual) {
		if other, ok := claimed[manual]; !ok || other == name {
			return manual, false
		}
		r.log.Debug("manual cluster already named in this pass", "cluster_id", manual, "name", claimed[manual])
	}
	return s.NewCluster(), true
}

func duplicateNames(s *clusterstate.State) []NameConflict {
	byName := make(map[string][]int64)
	for _, id := range s.ClusterIDs() {
		c, _ := s.Cluster(id)
		name := facematch.CanonicalName(c.Name)
		if name == "" {
			continue
		}
		byName[name] = append(byName[name], id)
	}

	var conflicts []NameConflict
	for name, ids := range byName {
		if len(ids) > 1 {
			conflicts = append(conflicts, NameConflict{Name: name, ClusterIDs: ids})
		}
	}
	slices.SortFunc(conflicts, func(a, b NameConflict) int {
		switch {
		case a.ClusterIDs[0] < b.ClusterIDs[0]:
			return -1
		case a.ClusterIDs[0] > b.ClusterIDs[0]:
			return 1
		}
		return 0
	})
	return conflicts
}
