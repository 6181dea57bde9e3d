package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/artpar/fusion/domain/destination"
	"github.com/artpar/fusion/domain/source"
	"github.com/artpar/fusion/ports"
)

const destinationCols = `id, code, path, headers, is_active, is_auth, filter`

// DestinationStore implements ports.DestinationStore using SQLite.
type DestinationStore struct {
	q querier
}

// NewDestinationStore creates a new SQLite destination store.
func NewDestinationStore(db *DB) *DestinationStore {
	return &DestinationStore{q: db.DB}
}

// ByID retrieves a destination by database id.
func (s *DestinationStore) ByID(ctx context.Context, id int64) (destination.Destination, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+destinationCols+` FROM destinations WHERE id = ?
	`, id)
	return scanDestination(row)
}

// ByCode retrieves a destination by its unique code.
func (s *DestinationStore) ByCode(ctx context.Context, code string) (destination.Destination, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+destinationCols+` FROM destinations WHERE code = ?
	`, code)
	return scanDestination(row)
}

// ByPath retrieves a destination by its unique inbound path. This is
// the request-time lookup.
func (s *DestinationStore) ByPath(ctx context.Context, path string) (destination.Destination, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+destinationCols+` FROM destinations WHERE path = ?
	`, path)
	return scanDestination(row)
}

// Exists reports whether a destination with the code is stored.
func (s *DestinationStore) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM destinations WHERE code = ?)
	`, code).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Insert stores a new destination and returns it with its assigned id.
func (s *DestinationStore) Insert(ctx context.Context, d destination.Destination) (destination.Destination, error) {
	headers, err := encodeMap(d.Headers)
	if err != nil {
		return destination.Destination{}, fmt.Errorf("encode headers: %w", err)
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO destinations (code, path, headers, is_active, is_auth, filter)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.Code, d.Path, headers, boolToInt(d.IsActive), boolToInt(d.IsAuth), nullIfEmpty(d.Filter))
	if err != nil {
		return destination.Destination{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return destination.Destination{}, err
	}
	d.ID = id
	return d, nil
}

// Update rewrites the destination matched by code.
func (s *DestinationStore) Update(ctx context.Context, d destination.Destination) (destination.Destination, error) {
	headers, err := encodeMap(d.Headers)
	if err != nil {
		return destination.Destination{}, fmt.Errorf("encode headers: %w", err)
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE destinations SET path = ?, headers = ?, is_active = ?, is_auth = ?, filter = ?
		WHERE code = ?
	`, d.Path, headers, boolToInt(d.IsActive), boolToInt(d.IsAuth), nullIfEmpty(d.Filter), d.Code)
	if err != nil {
		return destination.Destination{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return destination.Destination{}, err
	}
	if rows == 0 {
		return destination.Destination{}, ErrNotFound
	}
	return s.ByCode(ctx, d.Code)
}

// Upsert inserts or updates by code and returns the stored row with
// its id. The id of an existing row never changes.
func (s *DestinationStore) Upsert(ctx context.Context, d destination.Destination) (destination.Destination, error) {
	exists, err := s.Exists(ctx, d.Code)
	if err != nil {
		return destination.Destination{}, err
	}
	if exists {
		return s.Update(ctx, d)
	}
	return s.Insert(ctx, d)
}

// Delete removes the destination with the code.
func (s *DestinationStore) Delete(ctx context.Context, code string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM destinations WHERE code = ?`, code)
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

// Sources returns the destination's linked sources in ascending
// source id order. Aggregation order depends on it.
func (s *DestinationStore) Sources(ctx context.Context, destinationID int64) ([]source.Source, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT s.id, s.code, s.url, s.params, s.headers, s.timeout_secs,
			s.auth_type, s.auth_username, s.auth_password, s.auth_token, s.auth_param_key, s.auth_param_value,
			s.body_type, s.body_text, s.body_json, s.body_fields, s.fallback
		FROM destinations__sources ds
		INNER JOIN sources s ON s.id = ds.source_id
		WHERE ds.destination_id = ?
		ORDER BY s.id ASC
	`, destinationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []source.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// HasToken reports whether a link row ties the token to the destination.
func (s *DestinationStore) HasToken(ctx context.Context, destinationID, tokenID int64) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM destinations__auth_tokens
			WHERE destination_id = ? AND auth_token_id = ?
		)
	`, destinationID, tokenID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LinkSources links the destination to each source referenced by code.
// A code without a stored source links nothing and is not an error.
func (s *DestinationStore) LinkSources(ctx context.Context, destinationID int64, codes []string) error {
	for _, code := range codes {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO destinations__sources (destination_id, source_id)
			SELECT ?, id FROM sources WHERE code = ?
		`, destinationID, code)
		if err != nil {
			return fmt.Errorf("link source %q: %w", code, err)
		}
	}
	return nil
}

// UnlinkSources removes all source links of the destination.
func (s *DestinationStore) UnlinkSources(ctx context.Context, destinationID int64) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM destinations__sources WHERE destination_id = ?
	`, destinationID)
	return err
}

// UnlinkTokens removes all token links of the destination.
func (s *DestinationStore) UnlinkTokens(ctx context.Context, destinationID int64) error {
	_, err := s.q.ExecContext(ctx, `
		DELETE FROM destinations__auth_tokens WHERE destination_id = ?
	`, destinationID)
	return err
}

func scanDestination(row rowScanner) (destination.Destination, error) {
	var d destination.Destination
	var headers, filter sql.NullString
	var isActive, isAuth int

	err := row.Scan(&d.ID, &d.Code, &d.Path, &headers, &isActive, &isAuth, &filter)
	if errors.Is(err, sql.ErrNoRows) {
		return destination.Destination{}, ErrNotFound
	}
	if err != nil {
		return destination.Destination{}, err
	}

	if d.Headers, err = decodeMap(headers); err != nil {
		return destination.Destination{}, fmt.Errorf("decode headers: %w", err)
	}
	d.IsActive = isActive == 1
	d.IsAuth = isAuth == 1
	d.Filter = filter.String

	return d, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure interface compliance.
var _ ports.DestinationStore = (*DestinationStore)(nil)
