package codec

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"opgate/message"
)

// Kind tells which envelope variant a body decoded to.
type Kind uint8

const (
	KindMalformed Kind = iota // matches neither envelope
	KindData                  // {"data": ...}
	KindErrors                // {"code"?: ..., "errors": [...]}
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindErrors:
		return "errors"
	default:
		return "malformed"
	}
}

var (
	// ErrNotObject is reported for bodies that are valid JSON but not an object.
	ErrNotObject = errors.New("codec: response body is not a JSON object")
	// ErrUnknownEnvelope is reported for objects carrying neither "data" nor "errors".
	ErrUnknownEnvelope = errors.New(`codec: response body has neither "data" nor "errors"`)
)

// Envelope is the decoded form of one response body. Exactly one of Data,
// Errors or Err is meaningful, as told by Kind.
type Envelope[T any] struct {
	Kind   Kind
	Data   T
	Errors message.Errors
	Err    error
}

// Decode classifies body as a success or error envelope.
//
// The first pass only looks at which top-level keys are present; the second
// decodes the variants in order. The success envelope is tried first: a
// "data" value that decodes into T wins, whatever else the object holds, so a
// payload sent next to an empty or warning "errors" list is still a success.
// Only when "data" is absent or does not decode is a non-null "errors" read
// as the error envelope. A null "data" next to a non-null "errors" does not
// count as a success. Anything matching neither variant is KindMalformed with
// the underlying error; nothing is coerced.
func Decode[T any](c Codec, body []byte) Envelope[T] {
	var keys map[string]json.RawMessage
	if err := c.Decode(body, &keys); err != nil {
		return malformed[T](err)
	}
	if keys == nil {
		return malformed[T](ErrNotObject)
	}

	dataRaw, hasData := keys["data"]
	errsRaw, hasErrs := keys["errors"]
	hasErrs = hasErrs && !isNull(errsRaw)

	var dataErr error
	if hasData && !(hasErrs && isNull(dataRaw)) {
		var data T
		err := c.Decode(dataRaw, &data)
		if err == nil {
			return Envelope[T]{Kind: KindData, Data: data}
		}
		dataErr = fmt.Errorf("decode data: %w", err)
	}

	if hasErrs {
		var errs message.Errors
		if err := c.Decode(body, &errs); err != nil {
			return malformed[T](errors.Join(dataErr, fmt.Errorf("decode error envelope: %w", err)))
		}
		return Envelope[T]{Kind: KindErrors, Errors: errs}
	}

	if dataErr != nil {
		return malformed[T](dataErr)
	}
	return malformed[T](ErrUnknownEnvelope)
}

func malformed[T any](err error) Envelope[T] {
	return Envelope[T]{Kind: KindMalformed, Err: err}
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
