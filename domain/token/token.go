// Package token provides bearer token value types and pure validity rules.
// This package has NO dependencies on I/O or external packages.
package token

import "time"

const (
	// CleartextLength is the number of alphanumeric characters in a
	// minted token, and the exact length the authorizer accepts.
	CleartextLength = 32

	// DigestSize is the stored SHA-256 digest length in bytes.
	DigestSize = 32
)

// Token is a stored bearer credential. Value holds the SHA-256 digest
// of the cleartext; the cleartext itself is never persisted.
type Token struct {
	ID         int64
	Value      []byte     // 32-byte digest, the upsert key
	Expiration *time.Time // nil = never expires
}

// Valid reports whether the token is usable at the given instant.
// A token whose expiration equals now is already invalid.
func (t Token) Valid(now time.Time) bool {
	return t.Expiration == nil || t.Expiration.After(now)
}

// Expires reports whether the token carries an expiration.
func (t Token) Expires() bool {
	return t.Expiration != nil
}
