// Package random provides Random implementations.
package random

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
)

// alphabet is the character set for minted tokens.
const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Real uses crypto/rand for secure randomness.
type Real struct{}

// Bytes generates n cryptographically secure random bytes.
func (Real) Bytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// Alphanumeric generates a random string of n characters drawn
// uniformly from [0-9A-Za-z].
func (Real) Alphanumeric(n int) (string, error) {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("draw random index: %w", err)
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b), nil
}

// Fake provides deterministic randomness for testing.
type Fake struct {
	mu      sync.Mutex
	counter int
	strings []string // Preset strings to return
	index   int
}

// NewFake creates a fake random source.
func NewFake() *Fake {
	return &Fake{}
}

// WithStrings sets preset strings returned by Alphanumeric in order.
func (f *Fake) WithStrings(values ...string) *Fake {
	f.strings = values
	f.index = 0
	return f
}

// Bytes returns deterministic bytes based on an internal counter.
func (f *Fake) Bytes(n int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.counter++
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte((f.counter + i) % 256)
	}
	return b, nil
}

// Alphanumeric returns the next preset string, or a deterministic
// repetition of the alphabet when none are preset.
func (f *Fake) Alphanumeric(n int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.index < len(f.strings) {
		v := f.strings[f.index]
		f.index++
		if len(v) >= n {
			return v[:n], nil
		}
		for len(v) < n {
			v += alphabet[:1]
		}
		return v, nil
	}

	f.counter++
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = alphabet[(f.counter+i)%len(alphabet)]
	}
	return string(b), nil
}

// Reset resets the fake to initial state.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counter = 0
	f.index = 0
}
