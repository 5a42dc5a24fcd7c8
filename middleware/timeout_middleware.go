package middleware

import (
	"context"
	"time"

	"opgate/protocol"
	"opgate/transport"
)

// TimeOutMiddleware bounds every unary round trip, body included. Expiry is
// returned as the context error, never swallowed.
//
// Streams only get their deadline from the caller's context: cancelling the
// context after Open returns would cut the open-ended body.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next transport.Transport) transport.Transport {
		return Funcs{
			RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
				ctx, cancel := context.WithTimeout(ctx, timeout)
				defer cancel()
				return next.RoundTrip(ctx, req)
			},
			OpenFunc: next.Open,
		}
	}
}
