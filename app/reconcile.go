package app

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/artpar/fusion/adapters/metrics"
	"github.com/artpar/fusion/config"
	"github.com/artpar/fusion/domain/token"
	"github.com/artpar/fusion/ports"
)

// ReconcileDeps contains dependencies for ReconcileService.
type ReconcileDeps struct {
	Stores  ports.Stores
	Tx      ports.TxRunner
	Hasher  ports.Hasher
	Clock   ports.Clock
	Metrics *metrics.Collector // optional
	Logger  zerolog.Logger
}

// ReconcileService applies a parsed configuration document to the
// store under the content-addressed version log. All writes of one
// pass share a single transaction; the version row commits with them
// or not at all.
type ReconcileService struct {
	stores  ports.Stores
	tx      ports.TxRunner
	hasher  ports.Hasher
	clock   ports.Clock
	metrics *metrics.Collector
	logger  zerolog.Logger
}

// NewReconcileService creates the reconcile service.
func NewReconcileService(deps ReconcileDeps) *ReconcileService {
	return &ReconcileService{
		stores:  deps.Stores,
		tx:      deps.Tx,
		hasher:  deps.Hasher,
		clock:   deps.Clock,
		metrics: deps.Metrics,
		logger:  deps.Logger.With().Str("component", "reconcile").Logger(),
	}
}

// ReconcileResult summarizes one reconcile pass.
type ReconcileResult struct {
	Applied      bool
	Hash         []byte
	Sources      int
	Destinations int
	Tokens       int
}

// Run hashes the canonical configuration bytes, diffs against the
// latest applied version, and when they differ applies the document
// transactionally in document order.
func (s *ReconcileService) Run(ctx context.Context, doc config.Document, canonical []byte) (ReconcileResult, error) {
	hash := s.hasher.Sum(canonical)
	res := ReconcileResult{Hash: hash}

	latest, err := s.stores.Versions.Latest(ctx)
	switch {
	case errors.Is(err, ports.ErrNotFound):
		// First reconcile; nothing to diff against.
	case err != nil:
		s.count("failed")
		return res, fmt.Errorf("read latest config version: %w", err)
	case bytes.Equal(latest.Hash, hash):
		s.count("skipped")
		s.logger.Info().
			Str("hash", hex.EncodeToString(hash[:8])).
			Msg("configuration unchanged, skipping")
		return res, nil
	}

	err = s.tx.InTx(ctx, func(tx ports.Stores) error {
		return s.apply(ctx, tx, doc, hash)
	})
	if err != nil {
		s.count("failed")
		return res, err
	}

	res.Applied = true
	res.Sources = len(doc.Sources)
	res.Destinations = len(doc.Destinations)
	res.Tokens = len(doc.Tokens)

	s.count("applied")
	if s.metrics != nil {
		s.metrics.ConfigLastApplied.Set(float64(s.clock.Now().Unix()))
	}
	s.logger.Info().
		Str("hash", hex.EncodeToString(hash[:8])).
		Int("sources", res.Sources).
		Int("destinations", res.Destinations).
		Int("tokens", res.Tokens).
		Msg("configuration applied")

	return res, nil
}

func (s *ReconcileService) apply(ctx context.Context, tx ports.Stores, doc config.Document, hash []byte) error {
	// Sources first so destination links can resolve their codes.
	for _, spec := range doc.Sources {
		if _, err := tx.Sources.Upsert(ctx, spec.Source); err != nil {
			return fmt.Errorf("upsert source %q: %w", spec.Code, err)
		}
	}

	for _, spec := range doc.Destinations {
		dest, err := tx.Destinations.Upsert(ctx, spec.Destination)
		if err != nil {
			return fmt.Errorf("upsert destination %q: %w", spec.Code, err)
		}
		// Token links are rewritten from scratch: tokens still in the
		// document relink below, rotated-out tokens stay unlinked.
		if err := tx.Destinations.UnlinkTokens(ctx, dest.ID); err != nil {
			return fmt.Errorf("unlink tokens of %q: %w", spec.Code, err)
		}
		// An absent sources list leaves existing links untouched; an
		// empty one removes them all.
		if spec.SourcesDeclared {
			if err := tx.Destinations.UnlinkSources(ctx, dest.ID); err != nil {
				return fmt.Errorf("unlink sources of %q: %w", spec.Code, err)
			}
			if err := tx.Destinations.LinkSources(ctx, dest.ID, spec.SourceCodes); err != nil {
				return fmt.Errorf("link sources of %q: %w", spec.Code, err)
			}
		}
	}

	for i, spec := range doc.Tokens {
		tok, err := tx.Tokens.Upsert(ctx, token.Token{
			Value:      s.hasher.SumString(spec.Value),
			Expiration: spec.Expiration,
		})
		if err != nil {
			return fmt.Errorf("upsert auth_tokens[%d]: %w", i, err)
		}
		if err := tx.Tokens.UnlinkDestinations(ctx, tok.ID); err != nil {
			return fmt.Errorf("unlink destinations of auth_tokens[%d]: %w", i, err)
		}
		if err := tx.Tokens.LinkDestinations(ctx, tok.ID, spec.Destinations); err != nil {
			return fmt.Errorf("link destinations of auth_tokens[%d]: %w", i, err)
		}
	}

	if err := tx.Versions.Append(ctx, s.clock.Now(), hash); err != nil {
		return fmt.Errorf("append config version: %w", err)
	}
	return nil
}

func (s *ReconcileService) count(result string) {
	if s.metrics != nil {
		s.metrics.ReconcileRuns.WithLabelValues(result).Inc()
	}
}
