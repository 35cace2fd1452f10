package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/face-cluster/internal/database"
)

// runLockKey is the advisory lock key guarding clustering runs.
// It fits in 32 bits so pg_locks reports it in objid with classid 0.
const runLockKey int64 = 0x66636c75

// LockRepository implements the run lock with a session-level advisory lock.
type LockRepository struct {
	pool *Pool
}

// NewLockRepository creates a new run lock backed by PostgreSQL.
func NewLockRepository(pool *Pool) *LockRepository {
	return &LockRepository{pool: pool}
}

// AcquireRunLock takes the run lock on a dedicated connection. The returned
// release func unlocks and returns the connection to the pool; it is safe to
// call more than once.
func (r *LockRepository) AcquireRunLock(ctx context.Context) (func(), error) {
	conn, err := r.pool.Conn(ctx)
	if err != nil {
		return nil, err
	}

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", runLockKey).Scan(&locked); err != nil {
		conn.Close()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return nil, database.ErrRunInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", runLockKey); err != nil {
				slog.Warn("failed to release run lock", "error", err)
			}
			conn.Close()
		})
	}, nil
}

// RunInProgress reports whether any session holds the run lock.
func (r *LockRepository) RunInProgress(ctx context.Context) (bool, error) {
	var held bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory'
			  AND database = (SELECT oid FROM pg_database WHERE datname = current_database())
			  AND classid = 0
			  AND objid = $1::bigint::oid
			  AND objsubid = 1
			  AND granted
		)
	`, runLockKey).Scan(&held)
	if err != nil {
		return false, fmt.Errorf("query run lock: %w", err)
	}
	return held, nil
}
