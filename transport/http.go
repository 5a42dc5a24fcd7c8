package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"opgate/protocol"
)

// HTTPTransport sends requests with a net/http client. The zero value is not
// usable; use NewHTTPTransport.
type HTTPTransport struct {
	client  *http.Client
	framing Framing
}

// NewHTTPTransport returns a transport using client (http.DefaultClient when
// nil) that cuts streaming bodies according to framing.
func NewHTTPTransport(client *http.Client, framing Framing) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, framing: framing}
}

// RoundTrip sends req and reads the whole response body.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *protocol.Request) (*Response, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	return &Response{StatusCode: uint16(resp.StatusCode), Body: body}, nil
}

// Open sends req and returns as soon as the response headers arrive. The body
// stays open until the returned Chunks is closed or ctx is cancelled.
func (t *HTTPTransport) Open(ctx context.Context, req *protocol.Request) (*StreamResponse, error) {
	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	return &StreamResponse{
		StatusCode: uint16(resp.StatusCode),
		Chunks:     NewChunks(resp.Body, t.framing),
	}, nil
}

func (t *HTTPTransport) do(ctx context.Context, req *protocol.Request) (*http.Response, error) {
	hreq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), req.BodyReader())
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			hreq.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}
