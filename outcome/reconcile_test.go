package outcome

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opgate/codec"
	"opgate/message"
)

type point struct {
	X int `json:"x"`
}

func reconcile(status uint16, body string) (point, error) {
	return Reconcile(status, codec.Decode[point](codec.Default, []byte(body)))
}

func TestReconcileDataWinsOverStatus(t *testing.T) {
	for _, status := range []uint16{200, 201, 204, 400, 404, 500, 503} {
		got, err := reconcile(status, `{"data": {"x": 1}}`)
		require.NoError(t, err, "status %d", status)
		assert.Equal(t, point{X: 1}, got)
	}
}

func TestReconcileErrorEnvelope(t *testing.T) {
	for _, status := range []uint16{200, 400, 500} {
		_, err := reconcile(status, `{"code":"BAD","errors":[{"message":"nope"}]}`)

		var respErr *ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, status, respErr.StatusCode)
		assert.Equal(t, "BAD", respErr.Code)
		assert.Equal(t, []string{"nope"}, respErr.Messages())
	}
}

func TestReconcileMalformedNon2xx(t *testing.T) {
	_, err := reconcile(404, `not json`)

	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, uint16(404), statusErr.StatusCode)
	assert.Equal(t, "invalid HTTP response status code 404", err.Error())

	var parseErr *ParseError
	assert.False(t, errors.As(err, &parseErr))
}

func TestReconcileMalformed2xx(t *testing.T) {
	for _, status := range []uint16{200, 299} {
		got, err := reconcile(status, `not json`)

		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Error(t, parseErr.Unwrap())
		assert.Zero(t, got)

		var statusErr *HTTPStatusError
		assert.False(t, errors.As(err, &statusErr))
	}
}

func TestReconcileMalformedBoundaries(t *testing.T) {
	cases := []struct {
		status   uint16
		parseErr bool
	}{
		{199, false},
		{200, true},
		{299, true},
		{300, false},
		{304, false},
	}
	for _, tc := range cases {
		_, err := reconcile(tc.status, `{}`)
		var parseErr *ParseError
		assert.Equal(t, tc.parseErr, errors.As(err, &parseErr), "status %d", tc.status)
	}
}

func TestResponseErrorMessage(t *testing.T) {
	err := &ResponseError{
		StatusCode: 400,
		Errors:     []message.Error{{Message: "a"}, {Message: "b"}},
	}
	assert.Equal(t, "status code 400: a, b", err.Error())

	empty := &ResponseError{StatusCode: 500}
	assert.Equal(t, "status code 500", empty.Error())
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Op: "send", Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "transport: send: context deadline exceeded", err.Error())
}

func TestSerializationErrorUnwrap(t *testing.T) {
	cause := errors.New("unsupported type")
	err := &SerializationError{Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "error serializing data: unsupported type", err.Error())
}
