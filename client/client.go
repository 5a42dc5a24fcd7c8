// Package client invokes operations on a gateway.
//
// A Client is built once and shared: it holds no per-call state. Results come
// back through the generic functions Query, Mutate, Subscribe and LiveQuery,
// whose errors are the kinds defined in package outcome:
//
//	user, err := client.Query[User](ctx, c, "User.Get", GetUser{ID: 7})
//	var respErr *outcome.ResponseError
//	if errors.As(err, &respErr) {
//	    // the gateway said why: respErr.Code, respErr.Messages()
//	}
package client

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"opgate/codec"
	"opgate/loadbalance"
	"opgate/middleware"
	"opgate/outcome"
	"opgate/protocol"
	"opgate/registry"
	"opgate/transport"
)

// Client holds what every call shares: where to send it, how to encode it and
// the transport chain. It is immutable after New and safe for concurrent use.
type Client struct {
	base      *url.URL // nil with discovery
	token     string
	params    protocol.Params
	transport transport.Transport
	codec     codec.Codec
	logger    *zap.Logger

	registry registry.Registry // find gateway instance from registry
	service  string
	balancer loadbalance.Balancer
}

// New builds a client. Without options it talks to DefaultBaseURL over
// http.DefaultClient.
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	c := &Client{
		token:    cfg.Token,
		params:   cfg.Params,
		codec:    cfg.Codec,
		logger:   cfg.Logger,
		registry: cfg.Registry,
		service:  cfg.Service,
		balancer: cfg.Balancer,
	}
	if c.registry == nil {
		base, err := parseBase(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		c.base = base
	}

	tr := cfg.Transport
	if tr == nil {
		tr = transport.NewHTTPTransport(cfg.HTTPClient, cfg.Framing)
	}
	c.transport = middleware.Chain(cfg.Middleware...)(tr)
	return c, nil
}

// resolve returns the base URL for one call: the fixed one, or the instance
// the balancer picks for subpath.
func (c *Client) resolve(ctx context.Context, subpath string) (*url.URL, error) {
	if c.registry == nil {
		return c.base, nil
	}
	instances, err := c.registry.Discover(ctx, c.service)
	if err != nil {
		return nil, err
	}
	instance, err := c.balancer.Pick(subpath, instances)
	if err != nil {
		return nil, err
	}
	return parseBase(instance.Addr)
}

// prepare encodes input and builds the request. Nothing is sent.
func (c *Client) prepare(ctx context.Context, shape protocol.Shape, subpath string, input any) (*protocol.Request, error) {
	variables, err := c.codec.Encode(input)
	if err != nil {
		return nil, &outcome.SerializationError{Err: err}
	}
	base, err := c.resolve(ctx, subpath)
	if err != nil {
		return nil, &outcome.TransportError{Op: "resolve", Err: err}
	}
	req, err := protocol.Build(base, shape, subpath, variables, c.token, c.params)
	if err != nil {
		return nil, &outcome.TransportError{Op: "build", Err: err}
	}
	return req, nil
}

// Query runs an idempotent operation and decodes its result into T.
func Query[T any](ctx context.Context, c *Client, subpath string, input any) (T, error) {
	return invoke[T](ctx, c, protocol.ShapeQuery, subpath, input)
}

// Mutate runs a state-changing operation and decodes its result into T.
func Mutate[T any](ctx context.Context, c *Client, subpath string, input any) (T, error) {
	return invoke[T](ctx, c, protocol.ShapeMutate, subpath, input)
}

func invoke[T any](ctx context.Context, c *Client, shape protocol.Shape, subpath string, input any) (T, error) {
	var zero T
	req, err := c.prepare(ctx, shape, subpath, input)
	if err != nil {
		return zero, err
	}

	resp, err := c.transport.RoundTrip(ctx, req)
	if err != nil {
		return zero, &outcome.TransportError{Op: "send", Err: err}
	}

	value, err := outcome.Reconcile(resp.StatusCode, codec.Decode[T](c.codec, resp.Body))
	if err != nil {
		c.logFailure(shape, subpath, err)
		return zero, err
	}
	return value, nil
}

// Subscribe opens a subscription. Each message the gateway pushes becomes one
// item of the returned stream.
func Subscribe[T any](ctx context.Context, c *Client, subpath string, input any) (*Stream[T], error) {
	return open[T](ctx, c, protocol.ShapeSubscribe, subpath, input)
}

// LiveQuery opens a query the gateway re-sends whenever its result changes.
func LiveQuery[T any](ctx context.Context, c *Client, subpath string, input any) (*Stream[T], error) {
	return open[T](ctx, c, protocol.ShapeLive, subpath, input)
}

// open fails without a stream when the gateway answers with a non-2xx status;
// the body is not read in that case.
func open[T any](ctx context.Context, c *Client, shape protocol.Shape, subpath string, input any) (*Stream[T], error) {
	req, err := c.prepare(ctx, shape, subpath, input)
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.Open(ctx, req)
	if err != nil {
		return nil, &outcome.TransportError{Op: "send", Err: err}
	}
	if !outcome.IsSuccess(resp.StatusCode) {
		if resp.Chunks != nil {
			_ = resp.Chunks.Close()
		}
		err := &outcome.HTTPStatusError{StatusCode: resp.StatusCode}
		c.logFailure(shape, subpath, err)
		return nil, err
	}
	return newStream[T](resp, c.codec), nil
}

// logFailure records responses the gateway rejected by status.
func (c *Client) logFailure(shape protocol.Shape, subpath string, err error) {
	var statusErr *outcome.HTTPStatusError
	if errors.As(err, &statusErr) {
		c.logger.Error("invalid HTTP response status",
			zap.String("shape", shape.String()),
			zap.String("subpath", subpath),
			zap.Uint16("status", statusErr.StatusCode),
		)
	}
}
