package token

// Minter is the randomness a mint draws from. Satisfied by
// adapters/random without importing it here.
type Minter interface {
	Alphanumeric(n int) (string, error)
}

// Mint draws a fresh cleartext token of CleartextLength alphanumeric
// characters. The caller hashes it before storage; the cleartext is
// shown once and then discarded.
func Mint(r Minter) (string, error) {
	return r.Alphanumeric(CleartextLength)
}
