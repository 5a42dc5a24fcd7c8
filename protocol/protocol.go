// Package protocol implements the HTTP wire contract of the operations gateway.
//
// Every operation lives under the gateway's operations path; the operation
// shape decides the method and where the input goes:
//
//	shape      method  input                          extra
//	query      GET     ?variables=<json>
//	mutate     POST    body <json>
//	subscribe  GET     ?variables=<json>              streaming body
//	live       GET     ?variables=<json>&live=true    streaming body
//
// An optional opaque token is appended as one more query parameter.
package protocol

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Shape is the kind of remote operation.
type Shape uint8

const (
	ShapeQuery     Shape = iota // idempotent fetch
	ShapeMutate                 // state-changing call
	ShapeSubscribe              // server-pushed updates
	ShapeLive                   // query re-sent by the gateway whenever its result changes
)

func (s Shape) String() string {
	switch s {
	case ShapeQuery:
		return "query"
	case ShapeMutate:
		return "mutate"
	case ShapeSubscribe:
		return "subscribe"
	case ShapeLive:
		return "live"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

// Method returns the HTTP method for the shape.
func (s Shape) Method() string {
	if s == ShapeMutate {
		return http.MethodPost
	}
	return http.MethodGet
}

// Streaming reports whether the shape expects an open-ended body.
func (s Shape) Streaming() bool {
	return s == ShapeSubscribe || s == ShapeLive
}

// Default query parameter names.
const (
	DefaultVariablesParam = "variables"
	DefaultLiveParam      = "live"
	DefaultTokenParam     = "app_hash"

	ContentTypeJSON = "application/json"
)

// Params holds the query parameter names used on the wire.
type Params struct {
	Variables string
	Live      string
	Token     string
}

// DefaultParams returns the default parameter names.
func DefaultParams() Params {
	return Params{
		Variables: DefaultVariablesParam,
		Live:      DefaultLiveParam,
		Token:     DefaultTokenParam,
	}
}

// WithPrefix prefixes every parameter name, e.g. "wg_" gives wg_variables,
// wg_live and wg_app_hash.
func (p Params) WithPrefix(prefix string) Params {
	return Params{
		Variables: prefix + p.Variables,
		Live:      prefix + p.Live,
		Token:     prefix + p.Token,
	}
}

// Request is a fully built operation request, ready for a transport.
type Request struct {
	Shape   Shape
	Subpath string
	Method  string
	URL     *url.URL
	Header  http.Header
	Body    []byte // nil for GET shapes
}

// BodyReader returns a fresh reader over Body, or nil when there is none.
func (r *Request) BodyReader() io.Reader {
	if r.Body == nil {
		return nil
	}
	return bytes.NewReader(r.Body)
}

// Build joins subpath onto base and places the encoded variables according to
// shape. token is appended only when non-empty.
func Build(base *url.URL, shape Shape, subpath string, variables []byte, token string, params Params) (*Request, error) {
	if base == nil {
		return nil, fmt.Errorf("protocol: no base URL")
	}
	ref, err := url.Parse(subpath)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to parse url subpath %q: %w", subpath, err)
	}
	u := base.ResolveReference(ref)

	query := u.Query()
	req := &Request{
		Shape:   shape,
		Subpath: subpath,
		Method:  shape.Method(),
		Header:  make(http.Header),
	}
	req.Header.Set("Accept", ContentTypeJSON)
	req.Header.Set("Content-Type", ContentTypeJSON)

	if shape == ShapeMutate {
		req.Body = variables
	} else {
		query.Set(params.Variables, string(variables))
	}
	if token != "" {
		query.Set(params.Token, token)
	}
	if shape == ShapeLive {
		query.Set(params.Live, "true")
	}

	u.RawQuery = query.Encode()
	req.URL = u
	return req, nil
}
