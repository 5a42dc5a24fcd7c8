// Package config loads settings for the opctl command line.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected with --config.
//  3. Command-line flags that were set explicitly, which override earlier values.
//
// # JSON schema
//
// Durations can be either strings like "3s" or integer nanoseconds:
//
//	{
//	  "base_url": "http://localhost:9991/operations/",
//	  "token": "",
//	  "param_prefix": "wg_",
//	  "timeout": "10s",
//	  "rate": 50,
//	  "burst": 10,
//	  "framing": "line",
//	  "etcd_endpoints": ["127.0.0.1:2379"],
//	  "service": "gateway",
//	  "balancer": "roundrobin",
//	  "log_level": "info"
//	}
//
// When etcd_endpoints is set, the gateway is picked per call from the
// instances registered under service and base_url is ignored.
package config
