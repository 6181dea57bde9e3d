package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/fusion/domain/source"
	"github.com/artpar/fusion/ports"
)

// sourceCols is the column list every source query selects, in scan order.
const sourceCols = `id, code, url, params, headers, timeout_secs,
	auth_type, auth_username, auth_password, auth_token, auth_param_key, auth_param_value,
	body_type, body_text, body_json, body_fields, fallback`

// SourceStore implements ports.SourceStore using SQLite.
type SourceStore struct {
	q querier
}

// NewSourceStore creates a new SQLite source store.
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{q: db.DB}
}

// ByID retrieves a source by database id.
func (s *SourceStore) ByID(ctx context.Context, id int64) (source.Source, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+sourceCols+` FROM sources WHERE id = ?
	`, id)
	return scanSource(row)
}

// ByCode retrieves a source by its unique code.
func (s *SourceStore) ByCode(ctx context.Context, code string) (source.Source, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+sourceCols+` FROM sources WHERE code = ?
	`, code)
	return scanSource(row)
}

// Exists reports whether a source with the code is stored.
func (s *SourceStore) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM sources WHERE code = ?)
	`, code).Scan(&n)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Insert stores a new source and returns it with its assigned id.
func (s *SourceStore) Insert(ctx context.Context, src source.Source) (source.Source, error) {
	params, headers, fields, err := encodeSourceMaps(src)
	if err != nil {
		return source.Source{}, err
	}

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO sources (code, url, params, headers, timeout_secs,
			auth_type, auth_username, auth_password, auth_token, auth_param_key, auth_param_value,
			body_type, body_text, body_json, body_fields, fallback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, src.Code, src.URL, params, headers, nullTimeout(src.Timeout),
		string(src.Auth.Kind), nullIfEmpty(src.Auth.Username), nullIfEmpty(src.Auth.Password),
		nullIfEmpty(src.Auth.Token), nullIfEmpty(src.Auth.ParamKey), nullIfEmpty(src.Auth.ParamValue),
		string(src.Body.Kind), nullIfEmpty(src.Body.Text), nullIfEmpty(string(src.Body.JSON)),
		fields, nullIfEmpty(string(src.Fallback)))
	if err != nil {
		return source.Source{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return source.Source{}, err
	}
	src.ID = id
	return src, nil
}

// Update rewrites the source matched by code.
func (s *SourceStore) Update(ctx context.Context, src source.Source) (source.Source, error) {
	params, headers, fields, err := encodeSourceMaps(src)
	if err != nil {
		return source.Source{}, err
	}

	res, err := s.q.ExecContext(ctx, `
		UPDATE sources SET url = ?, params = ?, headers = ?, timeout_secs = ?,
			auth_type = ?, auth_username = ?, auth_password = ?, auth_token = ?,
			auth_param_key = ?, auth_param_value = ?,
			body_type = ?, body_text = ?, body_json = ?, body_fields = ?, fallback = ?
		WHERE code = ?
	`, src.URL, params, headers, nullTimeout(src.Timeout),
		string(src.Auth.Kind), nullIfEmpty(src.Auth.Username), nullIfEmpty(src.Auth.Password),
		nullIfEmpty(src.Auth.Token), nullIfEmpty(src.Auth.ParamKey), nullIfEmpty(src.Auth.ParamValue),
		string(src.Body.Kind), nullIfEmpty(src.Body.Text), nullIfEmpty(string(src.Body.JSON)),
		fields, nullIfEmpty(string(src.Fallback)), src.Code)
	if err != nil {
		return source.Source{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return source.Source{}, err
	}
	if rows == 0 {
		return source.Source{}, ErrNotFound
	}
	return s.ByCode(ctx, src.Code)
}

// Upsert inserts or updates by code and returns the stored row with
// its id. The id of an existing row never changes.
func (s *SourceStore) Upsert(ctx context.Context, src source.Source) (source.Source, error) {
	exists, err := s.Exists(ctx, src.Code)
	if err != nil {
		return source.Source{}, err
	}
	if exists {
		return s.Update(ctx, src)
	}
	return s.Insert(ctx, src)
}

// Delete removes the source with the code.
func (s *SourceStore) Delete(ctx context.Context, code string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM sources WHERE code = ?`, code)
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

func encodeSourceMaps(src source.Source) (params, headers, fields sql.NullString, err error) {
	if params, err = encodeMap(src.Params); err != nil {
		return params, headers, fields, fmt.Errorf("encode params: %w", err)
	}
	if headers, err = encodeMap(src.Headers); err != nil {
		return params, headers, fields, fmt.Errorf("encode headers: %w", err)
	}
	if fields, err = encodeMap(src.Body.Fields); err != nil {
		return params, headers, fields, fmt.Errorf("encode body fields: %w", err)
	}
	return params, headers, fields, nil
}

func scanSource(row rowScanner) (source.Source, error) {
	var s source.Source
	var params, headers, fallback sql.NullString
	var timeoutSecs sql.NullInt64
	var authType, bodyType string
	var authUsername, authPassword, authToken, authParamKey, authParamValue sql.NullString
	var bodyText, bodyJSON, bodyFields sql.NullString

	err := row.Scan(
		&s.ID, &s.Code, &s.URL, &params, &headers, &timeoutSecs,
		&authType, &authUsername, &authPassword, &authToken, &authParamKey, &authParamValue,
		&bodyType, &bodyText, &bodyJSON, &bodyFields, &fallback,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return source.Source{}, ErrNotFound
	}
	if err != nil {
		return source.Source{}, err
	}

	if s.Params, err = decodeMap(params); err != nil {
		return source.Source{}, fmt.Errorf("decode params: %w", err)
	}
	if s.Headers, err = decodeMap(headers); err != nil {
		return source.Source{}, fmt.Errorf("decode headers: %w", err)
	}
	if timeoutSecs.Valid {
		s.Timeout = time.Duration(timeoutSecs.Int64) * time.Second
	}

	kind, err := source.ParseAuthKind(authType)
	if err != nil {
		return source.Source{}, err
	}
	s.Auth = source.Auth{
		Kind:       kind,
		Username:   authUsername.String,
		Password:   authPassword.String,
		Token:      authToken.String,
		ParamKey:   authParamKey.String,
		ParamValue: authParamValue.String,
	}

	bodyKind, err := source.ParseBodyKind(bodyType)
	if err != nil {
		return source.Source{}, err
	}
	s.Body = source.Body{Kind: bodyKind, Text: bodyText.String}
	if bodyJSON.Valid && bodyJSON.String != "" {
		s.Body.JSON = json.RawMessage(bodyJSON.String)
	}
	if s.Body.Fields, err = decodeMap(bodyFields); err != nil {
		return source.Source{}, fmt.Errorf("decode body fields: %w", err)
	}

	if fallback.Valid && fallback.String != "" {
		s.Fallback = json.RawMessage(fallback.String)
	}

	return s, nil
}

func encodeMap(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMap(ns sql.NullString) (map[string]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTimeout(d time.Duration) sql.NullInt64 {
	if d == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(d / time.Second), Valid: true}
}

// Ensure interface compliance.
var _ ports.SourceStore = (*SourceStore)(nil)
