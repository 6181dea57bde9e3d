// Package dispatch provides request/response value types for the
// fan-out layer. This package has NO dependencies on I/O.
package dispatch

// Request represents an inbound gateway request (value type).
// This is extracted from HTTP and passed to the dispatch service.
type Request struct {
	// Path is the destination-relative path with a leading slash. The
	// route prefix has already been stripped by the HTTP front.
	Path string

	// Authorization is the raw Authorization header, possibly empty.
	Authorization string

	// TraceID correlates log lines for one request.
	TraceID string
}

// Result is the outcome of one dispatch (value type).
type Result struct {
	Status  int
	Headers map[string]string // response headers from the destination
	Body    []byte
	Err     *Error // nil on success
}

// OK builds a successful result carrying the aggregated payload.
func OK(body []byte, headers map[string]string) Result {
	return Result{Status: 200, Headers: headers, Body: body}
}

// Fail builds a result from a dispatch error.
func Fail(err *Error) Result {
	return Result{Status: err.Status(), Err: err}
}
