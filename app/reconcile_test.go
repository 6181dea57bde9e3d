package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/artpar/fusion/adapters/clock"
	"github.com/artpar/fusion/adapters/hasher"
	"github.com/artpar/fusion/adapters/sqlite"
	"github.com/artpar/fusion/app"
	"github.com/artpar/fusion/config"
)

func newReconciler(t *testing.T, stores *sqlite.Stores) *app.ReconcileService {
	t.Helper()
	return app.NewReconcileService(app.ReconcileDeps{
		Stores: stores.Ports(),
		Tx:     stores,
		Hasher: hasher.NewSHA256(),
		Clock:  clock.NewFake(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Logger: zerolog.Nop(),
	})
}

func parseDoc(t *testing.T, yaml string) (config.Document, []byte) {
	t.Helper()
	doc, canonical, err := config.Parse([]byte(yaml), "")
	require.NoError(t, err)
	return doc, canonical
}

const baseConfig = `
sources:
  a:
    url: http://u1
  b:
    url: http://u2
destinations:
  d:
    path: /both
    sources: [a, b]
auth_tokens:
  - value: abcdefghijklmnopqrstuvwxyz012345
    destinations: [d]
`

func TestReconcileAppliesAndSkips(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)

	res, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, 2, res.Sources)
	require.Equal(t, 1, res.Destinations)
	require.Equal(t, 1, res.Tokens)

	n, err := stores.Versions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	// Same document again: hash matches, nothing happens.
	res, err = svc.Run(ctx, doc, canonical)
	require.NoError(t, err)
	require.False(t, res.Applied)

	n, err = stores.Versions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func TestReconcileLatestHashMatchesCanonical(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	latest, err := stores.Versions.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, hasher.NewSHA256().Sum(canonical), latest.Hash)
	require.Len(t, latest.Hash, 32)
}

func TestReconcileChangeAppendsVersionAndKeepsIDs(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	before, err := stores.Sources.ByCode(ctx, "a")
	require.NoError(t, err)

	doc2, canonical2 := parseDoc(t, `
sources:
  a:
    url: http://u1-changed
`)
	res, err := svc.Run(ctx, doc2, canonical2)
	require.NoError(t, err)
	require.True(t, res.Applied)

	n, err := stores.Versions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	after, err := stores.Sources.ByCode(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.Equal(t, "http://u1-changed", after.URL)
}

func TestReconcileRewritesSourceLinks(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	doc2, canonical2 := parseDoc(t, `
destinations:
  d:
    path: /both
    sources: [b]
`)
	_, err = svc.Run(ctx, doc2, canonical2)
	require.NoError(t, err)

	dest, err := stores.Destinations.ByCode(ctx, "d")
	require.NoError(t, err)
	sources, err := stores.Destinations.Sources(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "b", sources[0].Code)
}

func TestReconcileAbsentSourceListKeepsLinks(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	// Destination re-declared without a sources key: links survive.
	doc2, canonical2 := parseDoc(t, `
destinations:
  d:
    path: /both
    is_active: true
`)
	_, err = svc.Run(ctx, doc2, canonical2)
	require.NoError(t, err)

	dest, err := stores.Destinations.ByCode(ctx, "d")
	require.NoError(t, err)
	sources, err := stores.Destinations.Sources(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
}

func TestReconcileTokenRotation(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()
	h := hasher.NewSHA256()

	t1 := "abcdefghijklmnopqrstuvwxyz012345"
	t2 := "ZYXWVUTSRQPONMLKJIHGFEDCBA543210"

	doc, canonical := parseDoc(t, `
destinations:
  d:
    path: /secure
    is_auth: true
auth_tokens:
  - value: `+t1+`
    destinations: [d]
`)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	dest, err := stores.Destinations.ByCode(ctx, "d")
	require.NoError(t, err)
	tok1, err := stores.Tokens.ByValue(ctx, h.SumString(t1))
	require.NoError(t, err)
	linked, err := stores.Destinations.HasToken(ctx, dest.ID, tok1.ID)
	require.NoError(t, err)
	require.True(t, linked)

	// Rotate: t2 replaces t1 on d.
	doc2, canonical2 := parseDoc(t, `
destinations:
  d:
    path: /secure
    is_auth: true
auth_tokens:
  - value: `+t2+`
    destinations: [d]
`)
	_, err = svc.Run(ctx, doc2, canonical2)
	require.NoError(t, err)

	linked, err = stores.Destinations.HasToken(ctx, dest.ID, tok1.ID)
	require.NoError(t, err)
	require.False(t, linked, "rotated-out token must no longer authorize")

	tok2, err := stores.Tokens.ByValue(ctx, h.SumString(t2))
	require.NoError(t, err)
	linked, err = stores.Destinations.HasToken(ctx, dest.ID, tok2.ID)
	require.NoError(t, err)
	require.True(t, linked)
}

func TestReconcileOnlyDigestsStored(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, baseConfig)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	tok, err := stores.Tokens.ByValue(ctx, hasher.NewSHA256().SumString("abcdefghijklmnopqrstuvwxyz012345"))
	require.NoError(t, err)
	require.Len(t, tok.Value, 32)

	// The cleartext itself is never a lookup key.
	_, err = stores.Tokens.ByValue(ctx, []byte("abcdefghijklmnopqrstuvwxyz012345"))
	require.Error(t, err)
}

func TestReconcileMissingLinkCodesIgnored(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, `
sources:
  a:
    url: http://u1
destinations:
  d:
    path: /d
    sources: [a, ghost]
`)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	dest, err := stores.Destinations.ByCode(ctx, "d")
	require.NoError(t, err)
	sources, err := stores.Destinations.Sources(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, "a", sources[0].Code)
}

func TestReconcileRollsBackOnFailure(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	// Two destinations fighting over one unique path fail the
	// transaction; nothing of the pass may remain.
	doc, canonical := parseDoc(t, `
sources:
  a:
    url: http://u1
destinations:
  d1:
    path: /same
  d2:
    path: /same
`)
	_, err := svc.Run(ctx, doc, canonical)
	require.Error(t, err)

	n, err := stores.Versions.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)

	exists, err := stores.Sources.Exists(ctx, "a")
	require.NoError(t, err)
	require.False(t, exists, "rolled-back source must not persist")
}

func TestReconcileIDsFollowDocumentOrder(t *testing.T) {
	stores := setupTestDB(t)
	svc := newReconciler(t, stores)
	ctx := context.Background()

	doc, canonical := parseDoc(t, `
sources:
  zulu: {url: "http://z"}
  alpha: {url: "http://a"}
destinations:
  d:
    path: /d
    sources: [alpha, zulu]
`)
	_, err := svc.Run(ctx, doc, canonical)
	require.NoError(t, err)

	// zulu was declared first, so it has the lower id and leads the
	// fan-out order no matter how the link list was written.
	dest, err := stores.Destinations.ByCode(ctx, "d")
	require.NoError(t, err)
	sources, err := stores.Destinations.Sources(ctx, dest.ID)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	require.Equal(t, "zulu", sources[0].Code)
	require.Equal(t, "alpha", sources[1].Code)
}
