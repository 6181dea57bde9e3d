// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/fusion/domain/destination"
	"github.com/artpar/fusion/domain/source"
	"github.com/artpar/fusion/domain/token"
)

// ErrNotFound is returned by stores when no row matches.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Random abstracts randomness for testability.
type Random interface {
	// Bytes generates n random bytes.
	Bytes(n int) ([]byte, error)
	// Alphanumeric generates a random string of n characters drawn
	// from [0-9A-Za-z].
	Alphanumeric(n int) (string, error)
}

// IDGenerator produces opaque unique identifiers, used as trace ids.
type IDGenerator interface {
	New() string
}

// Hasher produces stable 32-byte digests. Used for token storage and
// configuration content addressing.
type Hasher interface {
	// Sum digests a byte sequence.
	Sum(data []byte) []byte
	// SumString digests the UTF-8 bytes of a string.
	SumString(s string) []byte
}

// -----------------------------------------------------------------------------
// Upstream Ports
// -----------------------------------------------------------------------------

// Fetcher executes the outbound call for one source and returns its
// JSON payload. A non-2xx status, an unreachable upstream, or a
// non-JSON body are errors; timeouts satisfy errors.Is against
// context.DeadlineExceeded.
type Fetcher interface {
	Fetch(ctx context.Context, src source.Source) ([]byte, error)
}

// Filter applies a jq program to a JSON document and returns the
// emitted values as compact JSON, newline-separated.
type Filter interface {
	Apply(ctx context.Context, program string, input []byte) ([]byte, error)
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SourceStore persists upstream sources.
type SourceStore interface {
	// ByID retrieves a source by database id.
	ByID(ctx context.Context, id int64) (source.Source, error)

	// ByCode retrieves a source by its unique code.
	ByCode(ctx context.Context, code string) (source.Source, error)

	// Exists reports whether a source with the code is stored.
	Exists(ctx context.Context, code string) (bool, error)

	// Insert stores a new source and returns it with its assigned id.
	Insert(ctx context.Context, s source.Source) (source.Source, error)

	// Update rewrites the source matched by code.
	Update(ctx context.Context, s source.Source) (source.Source, error)

	// Upsert inserts or updates by code and returns the stored row.
	Upsert(ctx context.Context, s source.Source) (source.Source, error)

	// Delete removes the source with the code.
	Delete(ctx context.Context, code string) error
}

// DestinationStore persists inbound routes and their source links.
type DestinationStore interface {
	// ByID retrieves a destination by database id.
	ByID(ctx context.Context, id int64) (destination.Destination, error)

	// ByCode retrieves a destination by its unique code.
	ByCode(ctx context.Context, code string) (destination.Destination, error)

	// ByPath retrieves a destination by its unique inbound path.
	ByPath(ctx context.Context, path string) (destination.Destination, error)

	// Exists reports whether a destination with the code is stored.
	Exists(ctx context.Context, code string) (bool, error)

	// Insert stores a new destination and returns it with its id.
	Insert(ctx context.Context, d destination.Destination) (destination.Destination, error)

	// Update rewrites the destination matched by code.
	Update(ctx context.Context, d destination.Destination) (destination.Destination, error)

	// Upsert inserts or updates by code and returns the stored row.
	Upsert(ctx context.Context, d destination.Destination) (destination.Destination, error)

	// Delete removes the destination with the code.
	Delete(ctx context.Context, code string) error

	// Sources returns the destination's linked sources in ascending
	// source id order.
	Sources(ctx context.Context, destinationID int64) ([]source.Source, error)

	// HasToken reports whether a link row ties the token to the
	// destination.
	HasToken(ctx context.Context, destinationID, tokenID int64) (bool, error)

	// LinkSources links the destination to each source referenced by
	// code. Codes without a stored source are silently skipped.
	LinkSources(ctx context.Context, destinationID int64, codes []string) error

	// UnlinkSources removes all source links of the destination.
	UnlinkSources(ctx context.Context, destinationID int64) error

	// UnlinkTokens removes all token links of the destination. The
	// reconciler calls it on upsert so tokens dropped from the
	// configuration stop authorizing rewritten destinations.
	UnlinkTokens(ctx context.Context, destinationID int64) error
}

// TokenStore persists bearer token digests and their destination links.
type TokenStore interface {
	// ByID retrieves a token by database id.
	ByID(ctx context.Context, id int64) (token.Token, error)

	// ByValue retrieves a token by its 32-byte digest.
	ByValue(ctx context.Context, digest []byte) (token.Token, error)

	// Exists reports whether a token with the digest is stored.
	Exists(ctx context.Context, digest []byte) (bool, error)

	// Insert stores a new token and returns it with its assigned id.
	Insert(ctx context.Context, t token.Token) (token.Token, error)

	// Update rewrites the token matched by digest.
	Update(ctx context.Context, t token.Token) (token.Token, error)

	// Upsert inserts or updates by digest and returns the stored row.
	Upsert(ctx context.Context, t token.Token) (token.Token, error)

	// Delete removes the token with the digest.
	Delete(ctx context.Context, digest []byte) error

	// LinkDestinations links the token to each destination referenced
	// by code. Codes without a stored destination are silently skipped.
	LinkDestinations(ctx context.Context, tokenID int64, codes []string) error

	// UnlinkDestinations removes all destination links of the token.
	UnlinkDestinations(ctx context.Context, tokenID int64) error
}

// ConfigVersion is one row of the append-only configuration log.
type ConfigVersion struct {
	ID        int64
	UpdatedOn time.Time
	Hash      []byte // SHA-256 of the canonical YAML
}

// VersionStore persists the configuration version log.
type VersionStore interface {
	// Latest returns the most recently appended version, or
	// ErrNotFound when the log is empty.
	Latest(ctx context.Context) (ConfigVersion, error)

	// Append adds a new version row.
	Append(ctx context.Context, updatedOn time.Time, hash []byte) error

	// Count returns the number of version rows.
	Count(ctx context.Context) (int64, error)
}

// Stores bundles the entity stores backed by one database handle.
type Stores struct {
	Sources      SourceStore
	Destinations DestinationStore
	Tokens       TokenStore
	Versions     VersionStore
}

// TxRunner executes a function against transaction-bound stores.
// The transaction commits when fn returns nil and rolls back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Stores) error) error
}
