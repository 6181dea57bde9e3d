package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/artpar/fusion/ports"
)

// VersionStore implements ports.VersionStore using SQLite. The table
// is append-only; the newest row is the applied configuration.
type VersionStore struct {
	q querier
}

// NewVersionStore creates a new SQLite version store.
func NewVersionStore(db *DB) *VersionStore {
	return &VersionStore{q: db.DB}
}

// Latest returns the most recently appended version.
func (s *VersionStore) Latest(ctx context.Context) (ports.ConfigVersion, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, updated_on, hash FROM config_versions
		ORDER BY updated_on DESC, id DESC
		LIMIT 1
	`)

	var v ports.ConfigVersion
	err := row.Scan(&v.ID, &v.UpdatedOn, &v.Hash)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ConfigVersion{}, ErrNotFound
	}
	if err != nil {
		return ports.ConfigVersion{}, err
	}
	return v, nil
}

// Append adds a new version row.
func (s *VersionStore) Append(ctx context.Context, updatedOn time.Time, hash []byte) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO config_versions (updated_on, hash) VALUES (?, ?)
	`, updatedOn, hash)
	return err
}

// Count returns the number of version rows.
func (s *VersionStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM config_versions`).Scan(&n)
	return n, err
}

// Ensure interface compliance.
var _ ports.VersionStore = (*VersionStore)(nil)
