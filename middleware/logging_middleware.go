package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"opgate/protocol"
	"opgate/transport"
)

// RequestIDHeader carries the id stamped on every outgoing request.
const RequestIDHeader = "X-Request-Id"

// LoggingMiddleware stamps each request with an id and logs it with its
// status and duration. For streams the duration covers the wait for headers.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next transport.Transport) transport.Transport {
		return Funcs{
			RoundTripFunc: func(ctx context.Context, req *protocol.Request) (*transport.Response, error) {
				fields, start := stamp(req)
				resp, err := next.RoundTrip(ctx, req)
				if err != nil {
					logger.Warn("request failed", append(fields, zap.Duration("duration", time.Since(start)), zap.Error(err))...)
					return nil, err
				}
				logger.Debug("request done", append(fields, zap.Uint16("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))...)
				return resp, nil
			},
			OpenFunc: func(ctx context.Context, req *protocol.Request) (*transport.StreamResponse, error) {
				fields, start := stamp(req)
				resp, err := next.Open(ctx, req)
				if err != nil {
					logger.Warn("stream failed", append(fields, zap.Duration("duration", time.Since(start)), zap.Error(err))...)
					return nil, err
				}
				logger.Debug("stream opened", append(fields, zap.Uint16("status", resp.StatusCode), zap.Duration("duration", time.Since(start)))...)
				return resp, nil
			},
		}
	}
}

func stamp(req *protocol.Request) ([]zap.Field, time.Time) {
	id := uuid.NewString()
	req.Header.Set(RequestIDHeader, id)
	return []zap.Field{
		zap.String("request_id", id),
		zap.Stringer("shape", req.Shape),
		zap.String("subpath", req.Subpath),
		zap.String("method", req.Method),
	}, time.Now()
}
