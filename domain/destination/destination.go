// Package destination provides inbound route value types.
// This package has NO dependencies on I/O or external packages.
package destination

// Destination is one inbound path served by the gateway. A request for
// Path fans out to the destination's linked sources in ascending
// source id order.
type Destination struct {
	ID       int64
	Code     string            // unique identifier, the upsert key
	Path     string            // unique inbound path, the lookup key
	Headers  map[string]string // applied to the gateway response
	IsActive bool
	IsAuth   bool   // requests must carry a valid bearer token
	Filter   string // jq program applied to the aggregated array; "" = none
}

// RequiresAuth reports whether requests must present a bearer token.
func (d Destination) RequiresAuth() bool {
	return d.IsAuth
}

// HasFilter reports whether a post-aggregation filter is configured.
func (d Destination) HasFilter() bool {
	return d.Filter != ""
}
