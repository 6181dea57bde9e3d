package source

import (
	"encoding/json"
	"fmt"
)

// BodyKind discriminates upstream request body variants.
type BodyKind string

// Body variants. The string values double as the stored discriminator
// column.
const (
	BodyNone  BodyKind = "none"
	BodyText  BodyKind = "text"
	BodyJSON  BodyKind = "json"
	BodyForm  BodyKind = "form"
	BodyMulti BodyKind = "multi"
)

// Body is the payload attached to an upstream call. Upstream calls are
// always GET; a configured body rides along unchanged.
type Body struct {
	Kind   BodyKind
	Text   string            // text: sent verbatim
	JSON   json.RawMessage   // json: sent as application/json
	Fields map[string]string // form: url-encoded, multi: multipart/form-data
}

// ParseBodyKind maps a discriminator string to its kind.
// An unknown discriminator is a configuration error.
func ParseBodyKind(s string) (BodyKind, error) {
	switch k := BodyKind(s); k {
	case BodyNone, BodyText, BodyJSON, BodyForm, BodyMulti:
		return k, nil
	}
	return "", fmt.Errorf("unknown body type %q", s)
}
