// Package mock provides an in-memory implementation of database.Store for testing.
package mock

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// MockStore is an in-memory database.Store with error injection
type MockStore struct {
	mu          sync.RWMutex
	photos      map[int64]*database.Photo
	faces       map[int64]*database.Face
	clusters    map[int64]*database.Cluster
	corrections map[int64]*database.Correction
	runs        []database.RunRecord
	nextPhotoID int64
	nextFaceID  int64
	locked      bool

	// ApplyCalls counts successful ApplyChanges calls
	ApplyCalls int

	// Error injection
	ListEmbeddingsError   error
	ListAssignmentsError  error
	ListClustersError     error
	ListCorrectionsError  error
	ApplyChangesError     error
	ApplyChangesFailAfter int // fail every ApplyChanges call after this many successes (0 disables)
	SaveRunError          error
	UpsertCorrectionError error
	InsertFaceError       error
	GetStatsError         error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		photos:      make(map[int64]*database.Photo),
		faces:       make(map[int64]*database.Face),
		clusters:    make(map[int64]*database.Cluster),
		corrections: make(map[int64]*database.Correction),
		nextPhotoID: 1,
		nextFaceID:  1,
	}
}

// AddFace stores a face with an explicit id, creating its photo row when needed
func (m *MockStore) AddFace(face database.Face) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if face.PhotoID == 0 {
		face.PhotoID = 1
	}
	if _, ok := m.photos[face.PhotoID]; !ok {
		m.photos[face.PhotoID] = &database.Photo{ID: face.PhotoID, FilePath: fmt.Sprintf("photo-%d.jpg", face.PhotoID)}
		m.nextPhotoID = max(m.nextPhotoID, face.PhotoID+1)
	}
	face.Embedding = slices.Clone(face.Embedding)
	m.faces[face.ID] = &face
	m.nextFaceID = max(m.nextFaceID, face.ID+1)
}

// AddCluster stores a cluster row as-is
func (m *MockStore) AddCluster(c database.Cluster) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clusters[c.ID] = &c
}

// AddCorrection stores a correction row as-is
func (m *MockStore) AddCorrection(c database.Correction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrections[c.FaceID] = &c
}

// DeleteFace removes a face, leaving its correction dangling
func (m *MockStore) DeleteFace(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.faces, id)
}

// SetLocked simulates a run lock held by another session
func (m *MockStore) SetLocked(locked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locked = locked
}

// Runs returns the recorded runs in insertion order
func (m *MockStore) Runs() []database.RunRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.runs)
}

func sortedKeys[V any](items map[int64]V) []int64 {
	keys := make([]int64, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// ListEmbeddings returns all embeddings ordered by face id
func (m *MockStore) ListEmbeddings(ctx context.Context) ([]database.FaceEmbedding, error) {
	if m.ListEmbeddingsError != nil {
		return nil, m.ListEmbeddingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.FaceEmbedding
	for _, id := range sortedKeys(m.faces) {
		out = append(out, database.FaceEmbedding{FaceID: id, Embedding: slices.Clone(m.faces[id].Embedding)})
	}
	return out, nil
}

// EmbeddingDimension returns the embedding length of the lowest id face
func (m *MockStore) EmbeddingDimension(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := sortedKeys(m.faces)
	if len(ids) == 0 {
		return 0, nil
	}
	return len(m.faces[ids[0]].Embedding), nil
}

// GetFace retrieves a face by id
func (m *MockStore) GetFace(ctx context.Context, id int64) (*database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.faces[id]
	if !ok {
		return nil, fmt.Errorf("face %d: %w", id, database.ErrNotFound)
	}
	face := *f
	return &face, nil
}

// ListAssignments returns every face's cluster reference ordered by face id
func (m *MockStore) ListAssignments(ctx context.Context) ([]database.FaceAssignment, error) {
	if m.ListAssignmentsError != nil {
		return nil, m.ListAssignmentsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.FaceAssignment
	for _, id := range sortedKeys(m.faces) {
		out = append(out, database.FaceAssignment{FaceID: id, ClusterID: m.faces[id].ClusterID})
	}
	return out, nil
}

// GetClusterFaces returns the faces of a cluster ordered by id
func (m *MockStore) GetClusterFaces(ctx context.Context, clusterID int64) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Face
	for _, id := range sortedKeys(m.faces) {
		if f := m.faces[id]; f.ClusterID == clusterID {
			out = append(out, *f)
		}
	}
	return out, nil
}

// CountFacesByCluster returns the number of faces per referenced cluster
func (m *MockStore) CountFacesByCluster(ctx context.Context) (map[int64]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[int64]int)
	for _, f := range m.faces {
		if f.ClusterID != database.NoCluster {
			counts[f.ClusterID]++
		}
	}
	return counts, nil
}

// UpsertPhoto stores a photo by file path and returns its id
func (m *MockStore) UpsertPhoto(ctx context.Context, photo database.Photo) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.photos {
		if p.FilePath == photo.FilePath {
			p.FileHash, p.Width, p.Height = photo.FileHash, photo.Width, photo.Height
			return p.ID, nil
		}
	}
	photo.ID = m.nextPhotoID
	m.nextPhotoID++
	photo.CreatedAt = time.Now()
	m.photos[photo.ID] = &photo
	return photo.ID, nil
}

// InsertFace stores a new face and returns its id
func (m *MockStore) InsertFace(ctx context.Context, face database.Face) (int64, error) {
	if m.InsertFaceError != nil {
		return 0, m.InsertFaceError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.photos[face.PhotoID]
	if !ok {
		return 0, fmt.Errorf("photo %d: %w", face.PhotoID, database.ErrNotFound)
	}
	face.ID = m.nextFaceID
	m.nextFaceID++
	face.ClusterID = database.NoCluster
	face.Embedding = slices.Clone(face.Embedding)
	face.CreatedAt = time.Now()
	m.faces[face.ID] = &face
	p.FaceCount++
	return face.ID, nil
}

// ListClusters returns all clusters ordered by id
func (m *MockStore) ListClusters(ctx context.Context) ([]database.Cluster, error) {
	if m.ListClustersError != nil {
		return nil, m.ListClustersError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Cluster
	for _, id := range sortedKeys(m.clusters) {
		out = append(out, *m.clusters[id])
	}
	return out, nil
}

// GetCluster retrieves a cluster by id
func (m *MockStore) GetCluster(ctx context.Context, id int64) (*database.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clusters[id]
	if !ok {
		return nil, fmt.Errorf("cluster %d: %w", id, database.ErrNotFound)
	}
	cluster := *c
	return &cluster, nil
}

// FindClustersByName returns clusters with exactly the given name ordered by id
func (m *MockStore) FindClustersByName(ctx context.Context, name string) ([]database.Cluster, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Cluster
	for _, id := range sortedKeys(m.clusters) {
		if c := m.clusters[id]; name != "" && c.Name == name {
			out = append(out, *c)
		}
	}
	return out, nil
}

// RenameCluster sets or clears a cluster's name
func (m *MockStore) RenameCluster(ctx context.Context, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %d: %w", id, database.ErrNotFound)
	}
	c.Name = name
	c.UpdatedAt = time.Now()
	return nil
}

// SetRepresentative sets a cluster's representative face
func (m *MockStore) SetRepresentative(ctx context.Context, id, faceID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clusters[id]
	if !ok {
		return fmt.Errorf("cluster %d: %w", id, database.ErrNotFound)
	}
	c.RepresentativeFaceID = faceID
	c.UpdatedAt = time.Now()
	return nil
}

// ApplyChanges applies a change set atomically: nothing changes when it fails
func (m *MockStore) ApplyChanges(ctx context.Context, changes database.ChangeSet) error {
	if m.ApplyChangesError != nil {
		return m.ApplyChangesError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ApplyChangesFailAfter > 0 && m.ApplyCalls >= m.ApplyChangesFailAfter {
		return fmt.Errorf("apply changes: injected failure after %d calls", m.ApplyCalls)
	}

	known := make(map[int64]bool, len(m.clusters)+len(changes.Clusters))
	for id := range m.clusters {
		known[id] = true
	}
	for _, c := range changes.Clusters {
		known[c.ID] = true
	}
	for _, a := range changes.Assignments {
		if _, ok := m.faces[a.FaceID]; !ok {
			return fmt.Errorf("face %d: %w", a.FaceID, database.ErrNotFound)
		}
		if a.ClusterID != database.NoCluster && !known[a.ClusterID] {
			return fmt.Errorf("cluster %d: %w", a.ClusterID, database.ErrNotFound)
		}
	}

	now := time.Now()
	for _, u := range changes.Clusters {
		c, ok := m.clusters[u.ID]
		if !ok {
			c = &database.Cluster{ID: u.ID, CreatedAt: now}
			m.clusters[u.ID] = c
		}
		c.Name = u.Name
		c.FaceCount = u.FaceCount
		c.RepresentativeFaceID = u.RepresentativeFaceID
		c.UpdatedAt = now
	}
	for _, a := range changes.Assignments {
		m.faces[a.FaceID].ClusterID = a.ClusterID
	}
	m.ApplyCalls++
	return nil
}

// ListCorrections returns all corrections ordered by face id
func (m *MockStore) ListCorrections(ctx context.Context) ([]database.Correction, error) {
	if m.ListCorrectionsError != nil {
		return nil, m.ListCorrectionsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Correction
	for _, id := range sortedKeys(m.corrections) {
		out = append(out, *m.corrections[id])
	}
	return out, nil
}

// GetCorrection retrieves the correction for a face
func (m *MockStore) GetCorrection(ctx context.Context, faceID int64) (*database.Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.corrections[faceID]
	if !ok {
		return nil, fmt.Errorf("correction for face %d: %w", faceID, database.ErrNotFound)
	}
	correction := *c
	return &correction, nil
}

// UpsertCorrection creates or replaces a face's correction
func (m *MockStore) UpsertCorrection(ctx context.Context, correction database.Correction) error {
	if m.UpsertCorrectionError != nil {
		return m.UpsertCorrectionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.faces[correction.FaceID]; !ok {
		return fmt.Errorf("face %d: %w", correction.FaceID, database.ErrNotFound)
	}
	now := time.Now()
	if existing, ok := m.corrections[correction.FaceID]; ok {
		correction.CreatedAt = existing.CreatedAt
	} else {
		correction.CreatedAt = now
	}
	correction.UpdatedAt = now
	m.corrections[correction.FaceID] = &correction
	return nil
}

// DeleteCorrection removes a face's correction
func (m *MockStore) DeleteCorrection(ctx context.Context, faceID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.corrections[faceID]
	delete(m.corrections, faceID)
	return ok, nil
}

// SaveRun stores a run record
func (m *MockStore) SaveRun(ctx context.Context, run database.RunRecord) error {
	if m.SaveRunError != nil {
		return m.SaveRunError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, run)
	return nil
}

// ListRuns returns the most recent runs, newest first
func (m *MockStore) ListRuns(ctx context.Context, limit int) ([]database.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := slices.Clone(m.runs)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AcquireRunLock takes the run lock or returns database.ErrRunInProgress
func (m *MockStore) AcquireRunLock(ctx context.Context) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locked {
		return nil, database.ErrRunInProgress
	}
	m.locked = true
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.locked = false
			m.mu.Unlock()
		})
	}, nil
}

// RunInProgress reports whether the run lock is held
func (m *MockStore) RunInProgress(ctx context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.locked, nil
}

// GetStats returns aggregate statistics
func (m *MockStore) GetStats(ctx context.Context) (*database.Stats, error) {
	if m.GetStatsError != nil {
		return nil, m.GetStatsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := &database.Stats{
		TotalPhotos:      len(m.photos),
		TotalFaces:       len(m.faces),
		TotalCorrections: len(m.corrections),
	}
	nonEmpty := make(map[int64]bool)
	for _, f := range m.faces {
		if f.ClusterID == database.NoCluster {
			stats.UnassignedFaces++
			continue
		}
		nonEmpty[f.ClusterID] = true
	}
	for id := range nonEmpty {
		stats.TotalClusters++
		if c, ok := m.clusters[id]; ok && c.Name != "" {
			stats.NamedClusters++
		}
	}
	return stats, nil
}

var _ database.Store = (*MockStore)(nil)

// GetPhotoFaces returns the faces of a photo ordered by id
func (m *MockStore) GetPhotoFaces(ctx context.Context, photoID int64) ([]database.Face, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []database.Face
	for _, id := range sortedKeys(m.faces) {
		if f := m.faces[id]; f.PhotoID == photoID {
			out = append(out, *f)
		}
	}
	return out, nil
}

// PageClusters returns matching clusters ordered by face count desc, id asc
func (m *MockStore) PageClusters(ctx context.Context, query database.ClusterQuery) ([]database.Cluster, int, error) {
	if m.ListClustersError != nil {
		return nil, 0, m.ListClustersError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var matched []database.Cluster
	for _, id := range sortedKeys(m.clusters) {
		c := m.clusters[id]
		if c.FaceCount < query.MinFaces || (query.NamedOnly && c.Name == "") {
			continue
		}
		matched = append(matched, *c)
	}
	slices.SortStableFunc(matched, func(a, b database.Cluster) int {
		return b.FaceCount - a.FaceCount
	})
	total := len(matched)
	start := min(max(query.Offset, 0), total)
	end := total
	if query.Limit > 0 {
		end = min(start+query.Limit, total)
	}
	return matched[start:end], total, nil
}
