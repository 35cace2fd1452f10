// Package clusterstate holds an in-memory snapshot of face assignments, clusters and
// corrections. Engine passes mutate the snapshot; the accumulated mutations are
// exported as one database.ChangeSet so each pass is persisted as a single unit.
package clusterstate

import (
	"context"
	"fmt"
	"slices"

	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

// Reader is the subset of the store needed to load a snapshot
type Reader interface {
	ListAssignments(ctx context.Context) ([]database.FaceAssignment, error)
	ListClusters(ctx context.Context) ([]database.Cluster, error)
	ListCorrections(ctx context.Context) ([]database.Correction, error)
}

// State is a mutable snapshot of persisted cluster state.
// It is not safe for concurrent use.
type State struct {
	faces       map[int64]int64
	faceIDs     []int64
	clusters    map[int64]*database.Cluster
	corrections []database.Correction
	nextID      int64

	dirtyFaces    map[int64]struct{}
	dirtyClusters map[int64]struct{}
}

// Load reads a snapshot from the store.
func Load(ctx context.Context, r Reader) (*State, error) {
	assignments, err := r.ListAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list face assignments: %w", err)
	}
	clusters, err := r.ListClusters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clusters: %w", err)
	}
	corrections, err := r.ListCorrections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list corrections: %w", err)
	}
	return New(assignments, clusters, corrections), nil
}

// New builds a snapshot from already loaded rows.
func New(assignments []database.FaceAssignment, clusters []database.Cluster, corrections []database.Correction) *State {
	s := &State{
		faces:         make(map[int64]int64, len(assignments)),
		faceIDs:       make([]int64, 0, len(assignments)),
		clusters:      make(map[int64]*database.Cluster, len(clusters)),
		corrections:   slices.Clone(corrections),
		nextID:        1,
		dirtyFaces:    make(map[int64]struct{}),
		dirtyClusters: make(map[int64]struct{}),
	}

	for _, a := range assignments {
		if _, ok := s.faces[a.FaceID]; !ok {
			s.faceIDs = append(s.faceIDs, a.FaceID)
		}
		s.faces[a.FaceID] = a.ClusterID
	}
	slices.Sort(s.faceIDs)

	for i := range clusters {
		c := clusters[i]
		s.clusters[c.ID] = &c
		s.nextID = max(s.nextID, c.ID+1)
	}

	slices.SortFunc(s.corrections, func(a, b database.Correction) int {
		return compareInt64(a.FaceID, b.FaceID)
	})

	return s
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FaceIDs returns all face ids in ascending order.
func (s *State) FaceIDs() []int64 {
	return slices.Clone(s.faceIDs)
}

// HasFace reports whether the face exists.
func (s *State) HasFace(faceID int64) bool {
	_, ok := s.faces[faceID]
	return ok
}

// ClusterOf returns the face's cluster reference (NoCluster when unassigned or unknown).
func (s *State) ClusterOf(faceID int64) int64 {
	return s.faces[faceID]
}

// SetFaceCluster changes a face's cluster reference. Returns true if it changed.
// Unknown faces are ignored.
func (s *State) SetFaceCluster(faceID, clusterID int64) bool {
	cur, ok := s.faces[faceID]
	if !ok || cur == clusterID {
		return false
	}
	s.faces[faceID] = clusterID
	s.dirtyFaces[faceID] = struct{}{}
	return true
}

// HasCluster reports whether the cluster exists.
func (s *State) HasCluster(id int64) bool {
	_, ok := s.clusters[id]
	return ok
}

// Cluster returns a copy of the cluster and whether it exists.
func (s *State) Cluster(id int64) (database.Cluster, bool) {
	c, ok := s.clusters[id]
	if !ok {
		return database.Cluster{}, false
	}
	return *c, true
}

// ClusterIDs returns all cluster ids in ascending order, empty clusters included.
func (s *State) ClusterIDs() []int64 {
	ids := make([]int64, 0, len(s.clusters))
	for id := range s.clusters {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ClustersByName returns the ids of clusters whose canonical name equals name, ascending.
func (s *State) ClustersByName(name string) []int64 {
	name = facematch.CanonicalName(name)
	if name == "" {
		return nil
	}
	var ids []int64
	for id, c := range s.clusters {
		if facematch.CanonicalName(c.Name) == name {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// NewCluster creates an empty unnamed cluster with the next free id.
func (s *State) NewCluster() int64 {
	id := s.nextID
	s.nextID++
	s.clusters[id] = &database.Cluster{ID: id}
	s.dirtyClusters[id] = struct{}{}
	return id
}

// EnsureCluster creates the cluster with the given id if it does not exist.
// Returns true if it was created.
func (s *State) EnsureCluster(id int64) bool {
	if id == database.NoCluster || s.HasCluster(id) {
		return false
	}
	s.clusters[id] = &database.Cluster{ID: id}
	s.nextID = max(s.nextID, id+1)
	s.dirtyClusters[id] = struct{}{}
	return true
}

// SetName sets a cluster's name. Returns true if it changed.
func (s *State) SetName(id int64, name string) bool {
	c, ok := s.clusters[id]
	if !ok || c.Name == name {
		return false
	}
	c.Name = name
	s.dirtyClusters[id] = struct{}{}
	return true
}

// SetFaceCount sets a cluster's derived face count. Returns true if it changed.
func (s *State) SetFaceCount(id int64, count int) bool {
	c, ok := s.clusters[id]
	if !ok || c.FaceCount == count {
		return false
	}
	c.FaceCount = count
	s.dirtyClusters[id] = struct{}{}
	return true
}

// SetRepresentative sets a cluster's representative face. Returns true if it changed.
func (s *State) SetRepresentative(id, faceID int64) bool {
	c, ok := s.clusters[id]
	if !ok || c.RepresentativeFaceID == faceID {
		return false
	}
	c.RepresentativeFaceID = faceID
	s.dirtyClusters[id] = struct{}{}
	return true
}

// Members returns the faces of every cluster in ascending face id order.
// Faces without a cluster are not included.
func (s *State) Members() map[int64][]int64 {
	members := make(map[int64][]int64)
	for _, faceID := range s.faceIDs {
		if c := s.faces[faceID]; c != database.NoCluster {
			members[c] = append(members[c], faceID)
		}
	}
	return members
}

// Corrections returns the corrections in ascending face id order.
func (s *State) Corrections() []database.Correction {
	return s.corrections
}

// ChangeSet exports all mutations since the last reset, ordered by id.
func (s *State) ChangeSet() database.ChangeSet {
	var cs database.ChangeSet

	clusterIDs := make([]int64, 0, len(s.dirtyClusters))
	for id := range s.dirtyClusters {
		clusterIDs = append(clusterIDs, id)
	}
	slices.Sort(clusterIDs)
	for _, id := range clusterIDs {
		c := s.clusters[id]
		cs.Clusters = append(cs.Clusters, database.ClusterUpsert{
			ID:                   c.ID,
			Name:                 c.Name,
			FaceCount:            c.FaceCount,
			RepresentativeFaceID: c.RepresentativeFaceID,
		})
	}

	faceIDs := make([]int64, 0, len(s.dirtyFaces))
	for id := range s.dirtyFaces {
		faceIDs = append(faceIDs, id)
	}
	slices.Sort(faceIDs)
	for _, id := range faceIDs {
		cs.Assignments = append(cs.Assignments, database.FaceAssignment{FaceID: id, ClusterID: s.faces[id]})
	}

	return cs
}

// ResetChanges forgets tracked mutations, typically after they were persisted.
func (s *State) ResetChanges() {
	s.dirtyFaces = make(map[int64]struct{})
	s.dirtyClusters = make(map[int64]struct{})
}

// Summary describes the current snapshot
type Summary struct {
	NonEmptyClusters int `json:"non_empty_clusters"`
	NamedClusters    int `json:"named_clusters"`
	AssignedFaces    int `json:"assigned_faces"`
	UnassignedFaces  int `json:"unassigned_faces"`
}

// Summarize counts clusters and faces of the current snapshot.
func (s *State) Summarize() Summary {
	var sum Summary
	members := s.Members()
	for id, c := range s.clusters {
		if len(members[id]) == 0 {
			continue
		}
		sum.NonEmptyClusters++
		if c.Name != "" {
			sum.NamedClusters++
		}
	}
	for _, faceID := range s.faceIDs {
		if s.faces[faceID] == database.NoCluster {
			sum.UnassignedFaces++
		} else {
			sum.AssignedFaces++
		}
	}
	return sum
}
