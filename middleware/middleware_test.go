package middleware

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"opgate/protocol"
	"opgate/transport"
)

// echoTransport answers every request immediately with status 200.
func echoTransport() transport.Transport {
	return Funcs{
		RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
			return &transport.Response{StatusCode: 200, Body: []byte(`{"data":"ok"}`)}, nil
		},
		OpenFunc: func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
			return &transport.StreamResponse{StatusCode: 200}, nil
		},
	}
}

// slowTransport waits 200ms or until the context ends.
func slowTransport() transport.Transport {
	return Funcs{
		RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return &transport.Response{StatusCode: 200}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
		OpenFunc: func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
			select {
			case <-time.After(200 * time.Millisecond):
				return &transport.StreamResponse{StatusCode: 200}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
}

func newRequest(t *testing.T, shape protocol.Shape) *protocol.Request {
	t.Helper()
	base, err := url.Parse("http://gw.local/operations/")
	require.NoError(t, err)
	req, err := protocol.Build(base, shape, "Arith.Add", []byte(`{"a":1}`), "", protocol.DefaultParams())
	require.NoError(t, err)
	return req
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := LoggingMiddleware(zap.New(core))(echoTransport())

	req := newRequest(t, protocol.ShapeQuery)
	resp, err := tr.RoundTrip(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, uint16(200), resp.StatusCode)

	id := req.Header.Get(RequestIDHeader)
	assert.NotEmpty(t, id)

	entries := logs.FilterMessage("request done").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, id, fields["request_id"])
	assert.Equal(t, "query", fields["shape"])
	assert.Equal(t, "Arith.Add", fields["subpath"])
	assert.EqualValues(t, 200, fields["status"])
}

func TestLoggingFailure(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	failing := Funcs{
		RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
			return nil, errors.New("connection refused")
		},
		OpenFunc: func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
			return nil, errors.New("connection refused")
		},
	}
	tr := LoggingMiddleware(zap.New(core))(failing)

	_, err := tr.RoundTrip(context.Background(), newRequest(t, protocol.ShapeQuery))
	assert.EqualError(t, err, "connection refused")
	_, err = tr.Open(context.Background(), newRequest(t, protocol.ShapeSubscribe))
	assert.EqualError(t, err, "connection refused")

	assert.Equal(t, 1, logs.FilterMessage("request failed").FilterLevelExact(zapcore.WarnLevel).Len())
	assert.Equal(t, 1, logs.FilterMessage("stream failed").Len())
}

func TestLoggingStream(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := LoggingMiddleware(zap.New(core))(echoTransport())

	_, err := tr.Open(context.Background(), newRequest(t, protocol.ShapeLive))
	require.NoError(t, err)

	entries := logs.FilterMessage("stream opened").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "live", entries[0].ContextMap()["shape"])
}

func TestTimeoutPass(t *testing.T) {
	tr := TimeOutMiddleware(500 * time.Millisecond)(echoTransport())

	resp, err := tr.RoundTrip(context.Background(), newRequest(t, protocol.ShapeQuery))
	require.NoError(t, err)
	assert.Equal(t, uint16(200), resp.StatusCode)
}

func TestTimeoutExceeded(t *testing.T) {
	tr := TimeOutMiddleware(50 * time.Millisecond)(slowTransport())

	_, err := tr.RoundTrip(context.Background(), newRequest(t, protocol.ShapeQuery))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutLeavesStreamsAlone(t *testing.T) {
	tr := TimeOutMiddleware(50 * time.Millisecond)(slowTransport())

	resp, err := tr.Open(context.Background(), newRequest(t, protocol.ShapeSubscribe))
	require.NoError(t, err)
	assert.Equal(t, uint16(200), resp.StatusCode)
}

func TestRateLimit(t *testing.T) {
	// rate=1 per second, burst=2: two calls pass at once, the third has to wait
	tr := RateLimitMiddleware(1, 2)(echoTransport())

	for i := 0; i < 2; i++ {
		_, err := tr.RoundTrip(context.Background(), newRequest(t, protocol.ShapeQuery))
		require.NoError(t, err, "request %d", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := tr.Open(ctx, newRequest(t, protocol.ShapeSubscribe))
	assert.Error(t, err)
}

func TestChain(t *testing.T) {
	var order []string
	record := func(name string) Middleware {
		return func(next transport.Transport) transport.Transport {
			return Funcs{
				RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
					order = append(order, name)
					return next.RoundTrip(ctx, req)
				},
				OpenFunc: next.Open,
			}
		}
	}

	tr := Chain(record("a"), record("b"), TimeOutMiddleware(500*time.Millisecond))(echoTransport())
	resp, err := tr.RoundTrip(context.Background(), newRequest(t, protocol.ShapeQuery))
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, []string{"a", "b"}, order)
}
