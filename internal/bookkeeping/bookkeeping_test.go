package bookkeeping

import (
	"slices"
	"testing"

	"github.com/kozaktomas/face-cluster/internal/clusterstate"
	"github.com/kozaktomas/face-cluster/internal/database"
)

func TestRun(t *testing.T) {
	s := clusterstate.New(
		[]database.FaceAssignment{
			{FaceID: 1, ClusterID: 1},
			{FaceID: 2, ClusterID: 1},
			{FaceID: 3, ClusterID: 2},
			{FaceID: 4, ClusterID: 2},
			{FaceID: 5, ClusterID: 0},
		},
		[]database.Cluster{
			{ID: 1, FaceCount: 9, RepresentativeFaceID: 2}, // valid representative, wrong count
			{ID: 2, FaceCount: 2, RepresentativeFaceID: 5}, // representative left the cluster
			{ID: 3, FaceCount: 4, RepresentativeFaceID: 1}, // tombstone
			{ID: 4, FaceCount: 0, RepresentativeFaceID: 0}, // already consistent
		},
		nil,
	)

	res := Run(s)

	tests := []struct {
		id        int64
		wantCount int
		wantRep   int64
	}{
		{1, 2, 2},
		{2, 2, 3},
		{3, 0, 0},
		{4, 0, 0},
	}
	for _, tt := range tests {
		c, ok := s.Cluster(tt.id)
		if !ok {
			t.Fatalf("cluster %d missing", tt.id)
		}
		if c.FaceCount != tt.wantCount || c.RepresentativeFaceID != tt.wantRep {
			t.Errorf("cluster %d = count %d rep %d, want count %d rep %d",
				tt.id, c.FaceCount, c.RepresentativeFaceID, tt.wantCount, tt.wantRep)
		}
	}

	want := Result{Clusters: 4, EmptyClusters: 2, CountsChanged: 2, RepresentativesChanged: 2}
	if res != want {
		t.Errorf("Run() = %+v, want %+v", res, want)
	}
	if len(Check(s)) != 0 {
		t.Error("Check() after Run() should report nothing")
	}
}

func TestRun_RestoresMissingCluster(t *testing.T) {
	s := clusterstate.New([]database.FaceAssignment{{FaceID: 8, ClusterID: 12}}, nil, nil)

	res := Run(s)

	if res.RestoredClusters != 1 {
		t.Errorf("RestoredClusters = %d, want 1", res.RestoredClusters)
	}
	c, ok := s.Cluster(12)
	if !ok || c.FaceCount != 1 || c.RepresentativeFaceID != 8 {
		t.Errorf("restored cluster = %+v, ok=%v", c, ok)
	}
}

func TestRun_Idempotent(t *testing.T) {
	s := clusterstate.New(
		[]database.FaceAssignment{{FaceID: 1, ClusterID: 1}, {FaceID: 2, ClusterID: 1}},
		[]database.Cluster{{ID: 1}},
		nil,
	)
	Run(s)
	s.ResetChanges()

	if res := Run(s); res.CountsChanged != 0 || res.RepresentativesChanged != 0 {
		t.Errorf("second Run() = %+v, want no changes", res)
	}
	if !s.ChangeSet().IsEmpty() {
		t.Error("second Run() should not produce changes")
	}
}

func TestCheck(t *testing.T) {
	s := clusterstate.New(
		[]database.FaceAssignment{{FaceID: 1, ClusterID: 1}},
		[]database.Cluster{{ID: 1, FaceCount: 3, RepresentativeFaceID: 1}, {ID: 2}},
		nil,
	)

	stale := Check(s)
	if len(stale) != 1 || stale[0].ID != 1 || stale[0].FaceCount != 1 {
		t.Errorf("Check() = %+v, want cluster 1 with count 1", stale)
	}
	if !s.ChangeSet().IsEmpty() {
		t.Error("Check() must not change state")
	}
}

func TestCountDrift(t *testing.T) {
	s := clusterstate.New(
		[]database.FaceAssignment{
			{FaceID: 1, ClusterID: 1},
			{FaceID: 2, ClusterID: 1},
			{FaceID: 3, ClusterID: 2},
			{FaceID: 4, ClusterID: 3},
		},
		[]database.Cluster{{ID: 1}, {ID: 2}, {ID: 3}},
		nil,
	)

	tests := []struct {
		name   string
		counts map[int64]int
		want   []int64
	}{
		{"in sync", map[int64]int{1: 2, 2: 1, 3: 1}, nil},
		{"face added elsewhere", map[int64]int{1: 3, 2: 1, 3: 1}, []int64{1}},
		{"cluster emptied", map[int64]int{1: 2, 2: 1}, []int64{3}},
		{"unknown cluster", map[int64]int{1: 2, 2: 1, 3: 1, 7: 1}, []int64{7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CountDrift(s, tt.counts)
			if !slices.Equal(got, tt.want) {
				t.Errorf("CountDrift() = %v, want %v", got, tt.want)
			}
		})
	}
}
