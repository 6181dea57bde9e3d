package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/artpar/fusion/adapters/metrics"
	"github.com/artpar/fusion/domain/destination"
	"github.com/artpar/fusion/ports"
)

// bearerPattern is the exact header shape the authorizer accepts:
// "Bearer" plus one whitespace plus 32 word characters, nothing else.
var bearerPattern = regexp.MustCompile(`^Bearer\s(\w{32})$`)

// ErrUnauthorized is the single failure the authorizer reports. The
// caller learns nothing about which check failed; the reason goes only
// to metrics and logs.
var ErrUnauthorized = errors.New("unauthorized")

// AuthorizerDeps contains dependencies for Authorizer.
type AuthorizerDeps struct {
	Tokens       ports.TokenStore
	Destinations ports.DestinationStore
	Hasher       ports.Hasher
	Clock        ports.Clock
	Metrics      *metrics.Collector // optional
	Logger       zerolog.Logger
}

// Authorizer checks bearer credentials against the token table. The
// header's cleartext is hashed before the store is consulted, so a
// malformed header never reaches the database.
type Authorizer struct {
	tokens       ports.TokenStore
	destinations ports.DestinationStore
	hasher       ports.Hasher
	clock        ports.Clock
	metrics      *metrics.Collector
	logger       zerolog.Logger
}

// NewAuthorizer creates the authorizer.
func NewAuthorizer(deps AuthorizerDeps) *Authorizer {
	return &Authorizer{
		tokens:       deps.Tokens,
		destinations: deps.Destinations,
		hasher:       deps.Hasher,
		clock:        deps.Clock,
		metrics:      deps.Metrics,
		logger:       deps.Logger.With().Str("component", "authorizer").Logger(),
	}
}

// Authorize validates the Authorization header against the
// destination. It succeeds iff the header carries a well-formed bearer
// token whose digest is stored, linked to this destination, and not
// expired. Every other outcome, store failures included, is
// ErrUnauthorized.
func (a *Authorizer) Authorize(ctx context.Context, header string, dest destination.Destination) error {
	m := bearerPattern.FindStringSubmatch(header)
	if m == nil {
		return a.deny(dest, "malformed_header", nil)
	}

	digest := a.hasher.SumString(m[1])

	tok, err := a.tokens.ByValue(ctx, digest)
	if errors.Is(err, ports.ErrNotFound) {
		return a.deny(dest, "unknown_token", nil)
	}
	if err != nil {
		return a.deny(dest, "store_error", err)
	}

	linked, err := a.destinations.HasToken(ctx, dest.ID, tok.ID)
	if err != nil {
		return a.deny(dest, "store_error", err)
	}
	if !linked {
		return a.deny(dest, "not_linked", nil)
	}

	if !tok.Valid(a.clock.Now()) {
		return a.deny(dest, "expired", nil)
	}
	return nil
}

func (a *Authorizer) deny(dest destination.Destination, reason string, err error) error {
	if a.metrics != nil {
		a.metrics.AuthFailures.WithLabelValues(reason).Inc()
	}
	evt := a.logger.Debug().Str("destination", dest.Code).Str("reason", reason)
	if err != nil {
		evt = evt.Err(err)
	}
	evt.Msg("authorization denied")
	return fmt.Errorf("%w: %s", ErrUnauthorized, reason)
}
