package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Duration is a time.Duration read from JSON as "3s" or integer nanoseconds.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		d.Duration = v
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s", b)
	}
	d.Duration = time.Duration(n)
	return nil
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// tell a missing key from a zero value, so the file only overrides what it sets.
type JsonConfig struct {
	BaseURL       *string   `json:"base_url"`
	Token         *string   `json:"token"`
	ParamPrefix   *string   `json:"param_prefix"`
	Timeout       *Duration `json:"timeout"`
	Rate          *float64  `json:"rate"`
	Burst         *int      `json:"burst"`
	Framing       *string   `json:"framing"`
	EtcdEndpoints []string  `json:"etcd_endpoints"`
	Service       *string   `json:"service"`
	Balancer      *string   `json:"balancer"`
	LogLevel      *string   `json:"log_level"`
}

// LoadJSON overlays c with the values set in the JSON file at path.
func (c *Config) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}

	setString(&c.BaseURL, jc.BaseURL)
	setString(&c.Token, jc.Token)
	setString(&c.ParamPrefix, jc.ParamPrefix)
	if jc.Timeout != nil {
		c.Timeout = jc.Timeout.Duration
	}
	if jc.Rate != nil {
		c.Rate = *jc.Rate
	}
	if jc.Burst != nil {
		c.Burst = *jc.Burst
	}
	setString(&c.Framing, jc.Framing)
	if jc.EtcdEndpoints != nil {
		c.EtcdEndpoints = jc.EtcdEndpoints
	}
	setString(&c.Service, jc.Service)
	setString(&c.Balancer, jc.Balancer)
	setString(&c.LogLevel, jc.LogLevel)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
