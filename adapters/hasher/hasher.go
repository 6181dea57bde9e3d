// Package hasher provides digest implementations.
package hasher

import (
	"crypto/sha256"

	"github.com/artpar/fusion/ports"
)

// SHA256 digests with crypto/sha256. Digests are deterministic, which
// the token store relies on for by-value lookup.
type SHA256 struct{}

// NewSHA256 creates a SHA-256 hasher.
func NewSHA256() SHA256 {
	return SHA256{}
}

// Sum returns the 32-byte SHA-256 digest of data.
func (SHA256) Sum(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// SumString returns the 32-byte SHA-256 digest of the UTF-8 bytes of s.
func (h SHA256) SumString(s string) []byte {
	return h.Sum([]byte(s))
}

// Ensure interface compliance.
var _ ports.Hasher = SHA256{}
