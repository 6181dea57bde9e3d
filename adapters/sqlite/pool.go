package sqlite

import (
	"errors"
	"sync"
)

// The connection pool is process-wide. Request handling and the
// reconciler share it; tasks hold a connection only for the duration
// of one query.
var (
	poolMu sync.Mutex
	pool   *DB
)

var (
	// ErrPoolInitialized is returned when InitPool is called twice.
	ErrPoolInitialized = errors.New("connection pool already initialized")

	// ErrPoolNotInitialized is returned by Pool before InitPool.
	ErrPoolNotInitialized = errors.New("connection pool not initialized")
)

// InitPool opens the process-wide connection pool. It may be called
// exactly once per process; later calls fail with ErrPoolInitialized.
func InitPool(dsn string) (*DB, error) {
	poolMu.Lock()
	defer poolMu.Unlock()

	if pool != nil {
		return nil, ErrPoolInitialized
	}

	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	pool = db
	return pool, nil
}

// Pool returns the process-wide connection pool.
func Pool() (*DB, error) {
	poolMu.Lock()
	defer poolMu.Unlock()

	if pool == nil {
		return nil, ErrPoolNotInitialized
	}
	return pool, nil
}

// resetPool closes and clears the pool so tests can reinitialize it.
func resetPool() {
	poolMu.Lock()
	defer poolMu.Unlock()

	if pool != nil {
		pool.Close()
		pool = nil
	}
}
