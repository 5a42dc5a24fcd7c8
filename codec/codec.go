// Package codec turns request inputs into bytes and response bytes into envelopes.
package codec

// Codec serializes operation inputs and deserializes response bodies.
// Implementations must be safe for concurrent use.
type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = &JSONCodec{}
