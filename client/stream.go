package client

import (
	"io"
	"iter"
	"sync/atomic"

	"opgate/codec"
	"opgate/outcome"
	"opgate/transport"
)

// Stream is the sequence of outcomes of one subscription or live query.
//
// Every chunk is decoded on its own against the status the gateway sent when
// the stream opened. A chunk that fails to decode or carries an error
// envelope is reported by Recv and the stream goes on; a broken connection is
// reported once as *outcome.TransportError and the stream ends.
//
// Recv is not safe for concurrent use. Close may be called from any goroutine.
type Stream[T any] struct {
	status uint16
	chunks transport.Chunks
	codec  codec.Codec

	done   bool
	closed atomic.Bool
}

func newStream[T any](resp *transport.StreamResponse, c codec.Codec) *Stream[T] {
	return &Stream[T]{status: resp.StatusCode, chunks: resp.Chunks, codec: c}
}

// StatusCode returns the status the stream opened with.
func (s *Stream[T]) StatusCode() uint16 {
	return s.status
}

// Recv blocks for the next chunk and returns its outcome. It returns io.EOF
// once the stream has ended or been closed.
func (s *Stream[T]) Recv() (T, error) {
	var zero T
	if s.done || s.closed.Load() {
		return zero, io.EOF
	}

	chunk, err := s.chunks.Next()
	if err != nil {
		s.done = true
		// A read cut short by Close ends the stream quietly
		closedByCaller := s.closed.Load()
		_ = s.Close()
		if err == io.EOF || closedByCaller {
			return zero, io.EOF
		}
		return zero, &outcome.TransportError{Op: "read", Err: err}
	}
	return outcome.Reconcile(s.status, codec.Decode[T](s.codec, chunk))
}

// All ranges over the remaining outcomes. The connection is released when
// the loop ends, including on break.
func (s *Stream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		defer s.Close()
		for {
			v, err := s.Recv()
			if err == io.EOF {
				return
			}
			if !yield(v, err) {
				return
			}
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *Stream[T]) Close() error {
	s.closed.Store(true)
	if s.chunks == nil {
		return nil
	}
	return s.chunks.Close()
}
