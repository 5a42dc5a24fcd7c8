// Package outcome reconciles a decoded response envelope with the transport
// status code and defines the error kinds a call can end with.
//
// Each kind is its own type so callers can tell them apart with errors.As:
//
//	var respErr *outcome.ResponseError
//	if errors.As(err, &respErr) {
//	    // the gateway explained the failure: respErr.Code, respErr.Errors
//	}
package outcome

import (
	"fmt"
	"strings"

	"opgate/message"
)

// TransportError means no response was received: the URL could not be built,
// the request could not be sent, the connection broke mid-body, or the
// context was cancelled or timed out.
type TransportError struct {
	Op  string // "resolve", "build", "send", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// HTTPStatusError is a non-2xx status whose body matched neither envelope.
// The body carried nothing usable, so only the status is kept.
type HTTPStatusError struct {
	StatusCode uint16
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("invalid HTTP response status code %d", e.StatusCode)
}

// ResponseError is an error envelope reported by the gateway, with the
// status code of the response that carried it.
type ResponseError struct {
	StatusCode uint16
	Code       string
	Errors     []message.Error
}

func (e *ResponseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "status code %d", e.StatusCode)
	if len(e.Errors) > 0 {
		b.WriteString(": ")
	}
	for i, entry := range e.Errors {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(entry.Message)
	}
	return b.String()
}

// Messages returns the error messages in the order the gateway sent them.
func (e *ResponseError) Messages() []string {
	return message.Errors{Errors: e.Errors}.Messages()
}

// ParseError is a 2xx response whose body matched neither envelope. It points
// at a client/gateway version mismatch or a corrupted body.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("error decoding response: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SerializationError means the caller's input could not be encoded; no
// request was sent.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("error serializing data: %v", e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}
