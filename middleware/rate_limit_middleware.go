package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"opgate/protocol"
	"opgate/transport"
)

// RateLimitMiddleware paces outgoing requests with a token bucket shared by
// unary and streaming calls. A call waits for a token; if its context ends
// first the wait error is returned and nothing is sent.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next transport.Transport) transport.Transport {
		return Funcs{
			RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
				if err := limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limit: %w", err)
				}
				return next.RoundTrip(ctx, req)
			},
			OpenFunc: func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
				if err := limiter.Wait(ctx); err != nil {
					return nil, fmt.Errorf("rate limit: %w", err)
				}
				return next.Open(ctx, req)
			},
		}
	}
}
