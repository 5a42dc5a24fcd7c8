package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"opgate/client"
	"opgate/loadbalance"
	"opgate/middleware"
	"opgate/registry"
	"opgate/transport"
)

// Config holds runtime settings for opctl.
//
// Units: Timeout is a time.Duration, Rate is requests per second (0 disables
// rate limiting).
type Config struct {
	BaseURL       string
	Token         string
	ParamPrefix   string
	Timeout       time.Duration
	Rate          float64
	Burst         int
	Framing       string
	EtcdEndpoints []string
	Service       string
	Balancer      string
	LogLevel      string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = client.DefaultBaseURL
	c.Timeout = 30 * time.Second
	c.Burst = 1
	c.Framing = transport.FramingChunk.String()
	c.Service = "gateway"
	c.Balancer = "roundrobin"
	c.LogLevel = "warn"
}

// BindFlags registers one flag per field on fs, with the defaults as values.
// The flag values are kept apart from c until Load applies them.
func BindFlags(fs *pflag.FlagSet) *Config {
	f := &Config{}
	f.LoadDefaults()
	fs.StringVar(&f.BaseURL, "base-url", f.BaseURL, "gateway operations endpoint")
	fs.StringVar(&f.Token, "token", f.Token, "token appended to every request")
	fs.StringVar(&f.ParamPrefix, "param-prefix", f.ParamPrefix, `query parameter prefix, e.g. "wg_"`)
	fs.DurationVar(&f.Timeout, "timeout", f.Timeout, "timeout of query and mutate calls (0 disables)")
	fs.Float64Var(&f.Rate, "rate", f.Rate, "max requests per second (0 disables)")
	fs.IntVar(&f.Burst, "burst", f.Burst, "rate limiter burst")
	fs.StringVar(&f.Framing, "framing", f.Framing, `streaming framing: "chunk" or "line"`)
	fs.StringSliceVar(&f.EtcdEndpoints, "etcd", f.EtcdEndpoints, "etcd endpoints for gateway discovery")
	fs.StringVar(&f.Service, "service", f.Service, "service name gateways register under")
	fs.StringVar(&f.Balancer, "balancer", f.Balancer, "roundrobin, weighted or consistenthash")
	fs.StringVar(&f.LogLevel, "log-level", f.LogLevel, "debug, info, warn or error")
	fs.String("config", "", "JSON config file")
	return f
}

// Load constructs a Config: defaults, then the JSON file named by the
// --config flag (if any), then every flag of fs set on the command line.
// flags is the value BindFlags returned for fs.
func Load(fs *pflag.FlagSet, flags *Config) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := cfg.LoadJSON(path); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "base-url":
			cfg.BaseURL = flags.BaseURL
		case "token":
			cfg.Token = flags.Token
		case "param-prefix":
			cfg.ParamPrefix = flags.ParamPrefix
		case "timeout":
			cfg.Timeout = flags.Timeout
		case "rate":
			cfg.Rate = flags.Rate
		case "burst":
			cfg.Burst = flags.Burst
		case "framing":
			cfg.Framing = flags.Framing
		case "etcd":
			cfg.EtcdEndpoints = flags.EtcdEndpoints
		case "service":
			cfg.Service = flags.Service
		case "balancer":
			cfg.Balancer = flags.Balancer
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields that cannot be checked by client.New.
func (c *Config) Validate() error {
	var errs []error
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative"))
	}
	if c.Rate < 0 {
		errs = append(errs, fmt.Errorf("rate must not be negative"))
	}
	if c.Rate > 0 && c.Burst < 1 {
		errs = append(errs, fmt.Errorf("burst must be at least 1"))
	}
	if _, err := transport.ParseFraming(c.Framing); err != nil {
		errs = append(errs, err)
	}
	if _, err := loadbalance.New(c.Balancer); err != nil {
		errs = append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if len(c.EtcdEndpoints) > 0 && c.Service == "" {
		errs = append(errs, fmt.Errorf("service is required with etcd discovery"))
	}
	return errors.Join(errs...)
}

// Logger builds a zap logger at LogLevel; debug gets the development
// encoder, everything else the production one.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	if level == zapcore.DebugLevel {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// ClientOptions turns c into client options. The returned close function
// releases the etcd connection when discovery is used.
func (c *Config) ClientOptions(logger *zap.Logger) ([]client.Option, func() error, error) {
	framing, err := transport.ParseFraming(c.Framing)
	if err != nil {
		return nil, nil, err
	}

	opts := []client.Option{
		client.WithToken(c.Token),
		client.WithParamPrefix(c.ParamPrefix),
		client.WithFraming(framing),
		client.WithLogger(logger),
		client.WithMiddleware(middleware.LoggingMiddleware(logger)),
	}
	if c.Rate > 0 {
		opts = append(opts, client.WithMiddleware(middleware.RateLimitMiddleware(c.Rate, c.Burst)))
	}
	if c.Timeout > 0 {
		opts = append(opts, client.WithMiddleware(middleware.TimeOutMiddleware(c.Timeout)))
	}

	closeFn := func() error { return nil }
	if len(c.EtcdEndpoints) > 0 {
		reg, err := registry.NewEtcdRegistry(c.EtcdEndpoints, logger)
		if err != nil {
			return nil, nil, err
		}
		bal, err := loadbalance.New(c.Balancer)
		if err != nil {
			_ = reg.Close()
			return nil, nil, err
		}
		opts = append(opts, client.WithDiscovery(reg, c.Service, bal))
		closeFn = reg.Close
	} else {
		opts = append(opts, client.WithBaseURL(c.BaseURL))
	}
	return opts, closeFn, nil
}
