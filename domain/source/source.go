// Package source provides upstream source value types.
// This package has NO dependencies on I/O or external packages.
package source

import (
	"encoding/json"
	"time"
)

// Source is one upstream HTTP endpoint a destination fans out to.
// Rows are written only by the config reconciler; request handling
// treats them as read-only.
type Source struct {
	ID       int64
	Code     string            // unique identifier, the upsert key
	URL      string            // absolute URL of the upstream endpoint
	Params   map[string]string // extra query parameters
	Headers  map[string]string // extra request headers
	Timeout  time.Duration     // per-call deadline; 0 = unbounded
	Auth     Auth
	Body     Body
	Fallback json.RawMessage // JSON substituted on upstream failure; nil = none
}

// HasFallback reports whether a fallback payload is configured.
func (s Source) HasFallback() bool {
	return len(s.Fallback) > 0
}
