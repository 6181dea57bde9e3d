package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/artpar/fusion/ports"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
// Entity stores run against it so the same code serves both plain
// calls and transaction-bound calls.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// Stores bundles the entity stores backed by one database handle.
type Stores struct {
	db *DB

	Sources      *SourceStore
	Destinations *DestinationStore
	Tokens       *TokenStore
	Versions     *VersionStore
}

// NewStores creates the store bundle.
func NewStores(db *DB) *Stores {
	return &Stores{
		db:           db,
		Sources:      NewSourceStore(db),
		Destinations: NewDestinationStore(db),
		Tokens:       NewTokenStore(db),
		Versions:     NewVersionStore(db),
	}
}

// Ports exposes the bundle through its interface form.
func (s *Stores) Ports() ports.Stores {
	return ports.Stores{
		Sources:      s.Sources,
		Destinations: s.Destinations,
		Tokens:       s.Tokens,
		Versions:     s.Versions,
	}
}

// InTx runs fn against transaction-bound stores. The transaction
// commits when fn returns nil and rolls back otherwise, so a failing
// reconcile leaves no partial configuration behind.
func (s *Stores) InTx(ctx context.Context, fn func(tx ports.Stores) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	bound := ports.Stores{
		Sources:      &SourceStore{q: tx},
		Destinations: &DestinationStore{q: tx},
		Tokens:       &TokenStore{q: tx},
		Versions:     &VersionStore{q: tx},
	}

	if err := fn(bound); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Ensure interface compliance.
var _ ports.TxRunner = (*Stores)(nil)
