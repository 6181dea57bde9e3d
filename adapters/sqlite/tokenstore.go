package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/fusion/domain/token"
	"github.com/artpar/fusion/ports"
)

// TokenStore implements ports.TokenStore using SQLite. Only digests
// are stored; the cleartext never reaches this layer.
type TokenStore struct {
	q querier
}

// NewTokenStore creates a new SQLite token store.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{q: db.DB}
}

// ByID retrieves a token by database id.
func (s *TokenStore) ByID(ctx context.Context, id int64) (token.Token, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, value, expiration FROM auth_tokens WHERE id = ?
	`, id)
	return scanToken(row)
}

// ByValue retrieves a token by its 32-byte digest. This is the
// authorizer's lookup.
func (s *TokenStore) ByValue(ctx context.Context, digest []byte) (token.Token, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, value, expiration FROM auth_tokens WHERE value = ?
	`, digest)
	return scanToken(row)
}

// Exists reports whether a token with the digest is stored.
func (s *TokenStore) Exists(ctx context.Context, digest []byte) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM auth_tokens WHERE value = ?)
	`, digest).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Insert stores a new token and returns it with its assigned id.
func (s *TokenStore) Insert(ctx context.Context, t token.Token) (token.Token, error) {
	res, err := s.q.ExecContext(ctx, `
		INSERT INTO auth_tokens (value, expiration) VALUES (?, ?)
	`, t.Value, t.Expiration)
	if err != nil {
		return token.Token{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return token.Token{}, err
	}
	t.ID = id
	return t, nil
}

// Update rewrites the token matched by digest.
func (s *TokenStore) Update(ctx context.Context, t token.Token) (token.Token, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE auth_tokens SET expiration = ? WHERE value = ?
	`, t.Expiration, t.Value)
	if err != nil {
		return token.Token{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return token.Token{}, err
	}
	if rows == 0 {
		return token.Token{}, ErrNotFound
	}
	return s.ByValue(ctx, t.Value)
}

// Upsert inserts or updates by digest and returns the stored row with
// its id. The id of an existing row never changes.
func (s *TokenStore) Upsert(ctx context.Context, t token.Token) (token.Token, error) {
	exists, err := s.Exists(ctx, t.Value)
	if err != nil {
		return token.Token{}, err
	}
	if exists {
		return s.Update(ctx, t)
	}
	return s.Insert(ctx, t)
}

// Delete removes the token with the digest.
func (s *TokenStore) Delete(ctx context.Context, digest []byte) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM auth_tokens WHERE value = ?`, digest)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// LinkDestinations links the token to each destination referenced by
// code. A code without a stored destination links nothing.
func (s *TokenStore) LinkDestinations(ctx context.Context, tokenID int64, codes []string) error {
	for _, code := range codes {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO destinations__auth_tokens (destination_id, auth_token_id)
			SELECT id, ? FROM destinations WHERE code = ?
		`, tokenID, code)
		if err != nil {
			return fmt.Errorf("link destination %q: %w", code, err)
		}
	}
	return nil
}

// UnlinkDestinations removes all destination links of the token.
func (s *TokenStore) UnlinkDestinations(ctx context.Context, tokenID int64) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM destinations__auth_tokens WHERE auth_token_id = ?
	`, tokenID)
	return err
}

func scanToken(row rowScanner) (token.Token, error) {
	var t token.Token
	var expiration sql.NullTime

	err := row.Scan(&t.ID, &t.Value, &expiration)
	if errors.Is(err, sql.ErrNoRows) {
		return token.Token{}, ErrNotFound
	}
	if err != nil {
		return token.Token{}, err
	}

	if expiration.Valid {
		exp := expiration.Time
		t.Expiration = &exp
	}
	return t, nil
}

// Ensure interface compliance.
var _ ports.TokenStore = (*TokenStore)(nil)
