// Package transport is the boundary between the client and the network.
//
// The client only ever needs two things from it:
//
//	RoundTrip: send one request  → (status, whole body)
//	Open:      send one request  → (status, sequence of body chunks)
//
// The status is read once from the response headers. Everything about
// connections, TLS and pooling stays inside the implementation.
package transport

import (
	"context"

	"opgate/protocol"
)

// Response is the result of a unary exchange.
type Response struct {
	StatusCode uint16
	Body       []byte
}

// Chunks is a forward-only sequence of body chunks.
//
// Next returns io.EOF once the body is exhausted; any other error means the
// connection failed and no more chunks will follow. Close releases the
// connection and may be called at any time, more than once.
type Chunks interface {
	Next() ([]byte, error)
	Close() error
}

// StreamResponse is an open streaming exchange. The caller owns Chunks and
// must close it.
type StreamResponse struct {
	StatusCode uint16
	Chunks     Chunks
}

// Transport sends operation requests. Implementations must be safe for
// concurrent use.
type Transport interface {
	RoundTrip(ctx context.Context, req *protocol.Request) (*Response, error)
	Open(ctx context.Context, req *protocol.Request) (*StreamResponse, error)
}
