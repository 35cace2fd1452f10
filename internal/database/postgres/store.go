package postgres

import "github.com/kozaktomas/face-cluster/internal/database"

// Store implements database.Store on top of a Pool.
type Store struct {
	*FaceRepository
	*ClusterRepository
	*CorrectionRepository
	*RunRepository
	*LockRepository
	*StatsRepository
}

// NewStore creates a Store using the given pool.
func NewStore(pool *Pool) *Store {
	return &Store{
		FaceRepository:       NewFaceRepository(pool),
		ClusterRepository:    NewClusterRepository(pool),
		CorrectionRepository: NewCorrectionRepository(pool),
		RunRepository:        NewRunRepository(pool),
		LockRepository:       NewLockRepository(pool),
		StatsRepository:      NewStatsRepository(pool),
	}
}

var _ database.Store = (*Store)(nil)
