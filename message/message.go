// Package message defines the JSON envelopes exchanged with the operations gateway.
//
// Every response body (or, for streaming operations, every chunk) carries
// exactly one of two envelopes:
//
//	{"data": <payload>}                               success
//	{"code": "BAD", "errors": [{"message": "nope"}]}  error, code optional
package message

import (
	"errors"

	"github.com/goccy/go-json"
)

// Response is the success envelope. Data holds the operation result.
type Response[T any] struct {
	Data T `json:"data"`
}

// Errors is the error envelope reported by the gateway.
//
//   - Code: optional machine-readable code, empty when the gateway sent none (or null)
//   - Errors: individual entries, in the order the gateway reported them
type Errors struct {
	Code   string  `json:"code,omitempty"`
	Errors []Error `json:"errors"`
}

// Messages returns the entry messages in order.
func (e Errors) Messages() []string {
	msgs := make([]string, len(e.Errors))
	for i, entry := range e.Errors {
		msgs[i] = entry.Message
	}
	return msgs
}

// Error is a single error entry with a human-readable message.
type Error struct {
	Message string `json:"message"`
}

var errMissingMessage = errors.New("message: error entry has no message")

// UnmarshalJSON requires the "message" key; an entry without one does not
// match the error envelope.
func (e *Error) UnmarshalJSON(data []byte) error {
	var raw struct {
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Message == nil {
		return errMissingMessage
	}
	e.Message = *raw.Message
	return nil
}

func (e Error) String() string {
	return e.Message
}
