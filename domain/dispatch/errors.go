package dispatch

// Kind classifies dispatch failures. The values double as metric
// labels and log fields.
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindBadRequest   Kind = "bad_request"
	KindInternal     Kind = "internal"
)

// Error is a dispatch failure mapped onto the HTTP surface. NotFound
// and Unauthorized render with an empty body; BadRequest and Internal
// carry Message as text/plain.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface so dispatch failures can travel
// through task groups.
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Status maps the failure kind to its HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindNotFound:
		return 404
	case KindUnauthorized:
		return 401
	case KindBadRequest:
		return 400
	default:
		return 500
	}
}

// Body returns the response body for this failure: empty for NotFound
// and Unauthorized, the message otherwise.
func (e *Error) Body() []byte {
	switch e.Kind {
	case KindNotFound, KindUnauthorized:
		return nil
	default:
		return []byte(e.Message)
	}
}

// Common failures with fixed semantics.
var (
	ErrNotFound     = &Error{Kind: KindNotFound, Message: "destination not found"}
	ErrUnauthorized = &Error{Kind: KindUnauthorized, Message: "invalid or missing bearer token"}
)

// BadRequest builds a client-visible failure, used when an upstream
// call times out and no fallback is configured.
func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

// Internal builds a server-side failure.
func Internal(msg string) *Error {
	return &Error{Kind: KindInternal, Message: msg}
}
