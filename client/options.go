package client

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"opgate/codec"
	"opgate/loadbalance"
	"opgate/middleware"
	"opgate/protocol"
	"opgate/registry"
	"opgate/transport"
)

// DefaultBaseURL is the operations endpoint of a gateway on the local machine.
const DefaultBaseURL = "http://localhost:9991/operations/"

// ConfigError is returned by New when an option is invalid.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("opgate: configuration error: %s", e.Message)
}

// Config holds everything New builds a Client from. Option functions modify
// fields within this struct.
type Config struct {
	BaseURL    string
	Token      string
	Params     protocol.Params
	HTTPClient *http.Client
	Transport  transport.Transport
	Middleware []middleware.Middleware
	Framing    transport.Framing
	Logger     *zap.Logger
	Codec      codec.Codec

	Registry registry.Registry
	Service  string
	Balancer loadbalance.Balancer
}

// Option is a function type that modifies the Config.
type Option func(cfg *Config) error

func defaultConfig() Config {
	return Config{
		BaseURL: DefaultBaseURL,
		Params:  protocol.DefaultParams(),
		Framing: transport.FramingChunk,
		Logger:  zap.NewNop(),
		Codec:   codec.Default,
	}
}

// WithBaseURL sets the operations endpoint every subpath is joined onto.
// A missing trailing slash is added.
func WithBaseURL(raw string) Option {
	return func(cfg *Config) error {
		if _, err := parseBase(raw); err != nil {
			return err
		}
		cfg.BaseURL = raw
		return nil
	}
}

// WithToken sets the opaque token appended to every request.
func WithToken(token string) Option {
	return func(cfg *Config) error {
		cfg.Token = token
		return nil
	}
}

// WithParams replaces the query parameter names.
func WithParams(params protocol.Params) Option {
	return func(cfg *Config) error {
		if params.Variables == "" || params.Live == "" || params.Token == "" {
			return &ConfigError{"query parameter names cannot be empty"}
		}
		cfg.Params = params
		return nil
	}
}

// WithParamPrefix prefixes the current query parameter names. WithParamPrefix("wg_")
// talks to gateways expecting wg_variables, wg_live and wg_app_hash.
func WithParamPrefix(prefix string) Option {
	return func(cfg *Config) error {
		cfg.Params = cfg.Params.WithPrefix(prefix)
		return nil
	}
}

// WithHTTPClient sets the net/http client of the default transport.
// Ignored when WithTransport is also given.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *Config) error {
		if c == nil {
			return &ConfigError{"http client cannot be nil"}
		}
		cfg.HTTPClient = c
		return nil
	}
}

// WithTransport replaces the HTTP transport entirely.
func WithTransport(t transport.Transport) Option {
	return func(cfg *Config) error {
		if t == nil {
			return &ConfigError{"transport cannot be nil"}
		}
		cfg.Transport = t
		return nil
	}
}

// WithMiddleware appends transport middleware. The first one given is the
// outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(cfg *Config) error {
		for _, mw := range mws {
			if mw == nil {
				return &ConfigError{"middleware cannot be nil"}
			}
		}
		cfg.Middleware = append(cfg.Middleware, mws...)
		return nil
	}
}

// WithFraming sets how streaming bodies are cut into messages.
func WithFraming(f transport.Framing) Option {
	return func(cfg *Config) error {
		if f != transport.FramingChunk && f != transport.FramingLine {
			return &ConfigError{fmt.Sprintf("unknown framing %d", f)}
		}
		cfg.Framing = f
		return nil
	}
}

// WithLogger sets the logger for failed calls. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *Config) error {
		if logger == nil {
			return &ConfigError{"logger cannot be nil"}
		}
		cfg.Logger = logger
		return nil
	}
}

// WithCodec replaces the JSON codec used for inputs and response bodies.
func WithCodec(c codec.Codec) Option {
	return func(cfg *Config) error {
		if c == nil {
			return &ConfigError{"codec cannot be nil"}
		}
		cfg.Codec = c
		return nil
	}
}

// WithDiscovery picks the gateway of each call from the instances reg lists
// under service. The base URL is then ignored.
func WithDiscovery(reg registry.Registry, service string, bal loadbalance.Balancer) Option {
	return func(cfg *Config) error {
		if reg == nil {
			return &ConfigError{"registry cannot be nil"}
		}
		if service == "" {
			return &ConfigError{"service name cannot be empty"}
		}
		if bal == nil {
			bal = &loadbalance.RoundRobinBalancer{}
		}
		cfg.Registry = reg
		cfg.Service = service
		cfg.Balancer = bal
		return nil
	}
}

// parseBase parses an absolute http(s) URL and makes sure its path ends in a
// slash, so subpaths are joined below it rather than replacing its last segment.
func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &ConfigError{fmt.Sprintf("invalid base URL %q: %v", raw, err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigError{fmt.Sprintf("base URL %q must be http or https", raw)}
	}
	if u.Host == "" {
		return nil, &ConfigError{fmt.Sprintf("base URL %q has no host", raw)}
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}
