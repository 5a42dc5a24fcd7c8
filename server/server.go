// Package server is an operations gateway: it exposes Go methods as operations
// over the HTTP wire contract of package protocol.
//
// Request processing pipeline:
//
//	GET/POST /operations/{Service.Method}
//	  → token check → variables (query param or body) → reflect.Call
//	  → {"data": reply} or {"code": ..., "errors": [...]}
//
//	GET /operations/{stream}
//	  → token check → StreamFunc → one {"data": item} line per send, flushed
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"opgate/message"
	"opgate/protocol"
	"opgate/registry"
)

// OperationsPath is where operations are mounted.
const OperationsPath = "/operations/"

const maxBodySize = 1 << 20

// StreamRequest is what a StreamFunc is started with.
type StreamRequest struct {
	Operation string
	Variables json.RawMessage
	Live      bool
}

// StreamFunc serves one streaming operation. Each send writes one message and
// flushes it. The stream ends when the function returns or ctx is done; an
// error returned before the first send is answered like a unary error, one
// returned later is sent as a final error envelope.
type StreamFunc func(ctx context.Context, req *StreamRequest, send func(v any) error) error

// Option configures a Server.
type Option func(*Server)

// WithToken makes every operation require token in the token parameter.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithParams sets the query parameter names the server reads.
func WithParams(params protocol.Params) Option {
	return func(s *Server) { s.params = params }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Server is the operations gateway.
type Server struct {
	mu         sync.RWMutex
	serviceMap map[string]*service    // Registered services: "Arith" → *service
	streams    map[string]StreamFunc // Streaming operations by name

	token  string
	params protocol.Params
	logger *zap.Logger

	httpServer    *http.Server
	listener      net.Listener
	shutdown      atomic.Bool
	streamCtx     context.Context // cancelled on Shutdown to end open streams
	cancelStreams context.CancelFunc

	registry      registry.Registry // nil if not using discovery
	service       string
	advertiseAddr string // base URL registered for discovery, routable from clients
}

// NewServer creates a server with no operations.
func NewServer(opts ...Option) *Server {
	s := &Server{
		serviceMap: make(map[string]*service),
		streams:    make(map[string]StreamFunc),
		params:     protocol.DefaultParams(),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streamCtx, s.cancelStreams = context.WithCancel(context.Background())
	return s
}

// Register exposes the exported methods of rcvr (e.g. &Arith{}) shaped
// func (*S) M(args *A, reply *R) error, optionally with a leading
// context.Context, as operations "S.M".
func (s *Server) Register(rcvr any) error {
	svc, err := newService(rcvr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceMap[svc.name] = svc
	return nil
}

// RegisterStream exposes fn as the streaming operation name.
func (s *Server) RegisterStream(name string, fn StreamFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams[name] = fn
}

// Handler returns the HTTP handler serving OperationsPath.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(OperationsPath, s)
	return mux
}

// Serve listens on address and serves until Shutdown.
//
// reg, when not nil, gets every registered service under name, advertised
// as advertiseAddr (e.g. "http://10.0.0.7:9991/operations/"). advertiseAddr
// differs from the listen address because ":9991" is not routable.
func (s *Server) Serve(address string, service string, advertiseAddr string, reg registry.Registry) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.ServeListener(listener, service, advertiseAddr, reg)
}

// ServeListener is Serve on an existing listener.
func (s *Server) ServeListener(listener net.Listener, service string, advertiseAddr string, reg registry.Registry) error {
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if reg != nil {
		s.registry = reg
		s.service = service
		s.advertiseAddr = advertiseAddr
		// TTL = 10 seconds, the registry keeps the lease alive
		err := reg.Register(context.Background(), service, registry.Instance{Addr: advertiseAddr, Weight: 1}, 10)
		if err != nil {
			return fmt.Errorf("server: register %s: %w", service, err)
		}
	}

	s.logger.Info("serving operations", zap.String("addr", listener.Addr().String()))
	err := s.httpServer.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) && s.shutdown.Load() {
		return nil
	}
	return err
}

// Shutdown performs graceful shutdown:
//  1. Deregister from the registry (clients stop routing to this server)
//  2. End open streams, which would otherwise never finish
//  3. Stop accepting and wait for in-flight unary calls (with timeout)
func (s *Server) Shutdown(timeout time.Duration) error {
	if s.registry != nil {
		if err := s.registry.Deregister(context.Background(), s.service, s.advertiseAddr); err != nil {
			s.logger.Warn("deregister failed", zap.Error(err))
		}
	}

	s.shutdown.Store(true)
	s.cancelStreams()
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, OperationsPath)
	query := r.URL.Query()

	if s.token != "" && query.Get(s.params.Token) != s.token {
		s.writeError(w, Errorf(http.StatusUnauthorized, CodeUnauthorized, "invalid token"))
		return
	}

	variables, err := s.variables(r)
	if err != nil {
		s.writeError(w, Errorf(http.StatusBadRequest, CodeBadVariables, "%v", err))
		return
	}

	s.mu.RLock()
	stream, isStream := s.streams[name]
	s.mu.RUnlock()
	if isStream {
		s.serveStream(w, r, &StreamRequest{
			Operation: name,
			Variables: variables,
			Live:      query.Get(s.params.Live) == "true",
		}, stream)
		return
	}

	reply, err := s.call(r.Context(), name, variables)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, message.Response[any]{Data: reply})
}

// variables reads the operation input: the body for POST, the variables
// query parameter otherwise. Missing input reads as JSON null.
func (s *Server) variables(r *http.Request) (json.RawMessage, error) {
	var raw []byte
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
		if err != nil {
			return nil, fmt.Errorf("reading body: %w", err)
		}
		raw = body
	} else {
		raw = []byte(r.URL.Query().Get(s.params.Variables))
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, errors.New("variables are not valid JSON")
	}
	return raw, nil
}

// call dispatches "Service.Method" to the registered receiver.
//
// Flow: find service → find method → reflect.New(args) →
// json.Unmarshal(variables, args) → reflect.Call → reply
func (s *Server) call(ctx context.Context, name string, variables json.RawMessage) (any, error) {
	serviceName, methodName, ok := strings.Cut(name, ".")
	if !ok {
		return nil, Errorf(http.StatusNotFound, CodeNotFound, "unknown operation %q", name)
	}

	s.mu.RLock()
	svc := s.serviceMap[serviceName]
	s.mu.RUnlock()
	if svc == nil {
		return nil, Errorf(http.StatusNotFound, CodeNotFound, "unknown operation %q", name)
	}
	method := svc.method[methodName]
	if method == nil {
		return nil, Errorf(http.StatusNotFound, CodeNotFound, "unknown operation %q", name)
	}

	argv := reflect.New(method.ArgType)     // e.g., reflect.New(Args) → *Args
	replyv := reflect.New(method.ReplyType) // e.g., reflect.New(Reply) → *Reply
	if err := json.Unmarshal(variables, argv.Interface()); err != nil {
		return nil, Errorf(http.StatusBadRequest, CodeBadVariables, "%v", err)
	}

	if err := svc.call(ctx, method, argv, replyv); err != nil {
		return nil, err
	}
	return replyv.Interface(), nil
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, req *StreamRequest, fn StreamFunc) {
	flusher, _ := w.(http.Flusher)
	started := false
	enc := json.NewEncoder(w) // Encode appends the newline delimiting messages

	send := func(v any) error {
		if !started {
			w.Header().Set("Content-Type", protocol.ContentTypeJSON)
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if err := enc.Encode(message.Response[any]{Data: v}); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.streamCtx, cancel)
	defer stop()

	err := fn(ctx, req, send)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if !started {
		s.writeError(w, err)
		return
	}
	s.logger.Warn("stream failed", zap.String("operation", req.Operation), zap.Error(err))
	_, env := envelopeOf(err)
	_ = enc.Encode(env)
	if flusher != nil {
		flusher.Flush()
	}
}

func envelopeOf(err error) (int, message.Errors) {
	var opErr *Error
	if !errors.As(err, &opErr) {
		opErr = &Error{Status: http.StatusInternalServerError, Code: CodeInternal, Messages: []string{err.Error()}}
	}
	env := message.Errors{Code: opErr.Code, Errors: make([]message.Error, len(opErr.Messages))}
	for i, msg := range opErr.Messages {
		env.Errors[i] = message.Error{Message: msg}
	}
	return opErr.status(), env
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, env := envelopeOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("operation failed", zap.Int("status", status), zap.Error(err))
	}
	s.writeJSON(w, status, env)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("failed to marshal response", zap.Error(err))
		status = http.StatusInternalServerError
		body = []byte(`{"code":"` + CodeInternal + `","errors":[{"message":"failed to marshal response"}]}`)
	}
	w.Header().Set("Content-Type", protocol.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
