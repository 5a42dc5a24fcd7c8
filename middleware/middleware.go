// Package middleware decorates a transport.Transport.
//
// Middlewares wrap each other like an onion:
//
//	Chain(A, B, C)(t) → A(B(C(t)))
//	call order: A → B → C → t → C → B → A
package middleware

import (
	"context"

	"opgate/protocol"
	"opgate/transport"
)

type Middleware func(next transport.Transport) transport.Transport

// Chain combines middlewares into one, the first being the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next transport.Transport) transport.Transport {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Funcs adapts a pair of functions to transport.Transport.
type Funcs struct {
	RoundTripFunc func(ctx context.Context, req *protocol.Request) (*transport.Response, error)
	OpenFunc      func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error)
}

func (f Funcs) RoundTrip(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
	return f.RoundTripFunc(ctx, req)
}

func (f Funcs) Open(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
	return f.OpenFunc(ctx, req)
}
