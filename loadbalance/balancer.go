// Package loadbalance picks the gateway instance a call is sent to.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity gateways
//   - WeightedRandom:  gateways of different capacity
//   - ConsistentHash:  the same operation always lands on the same gateway
package loadbalance

import (
	"errors"

	"opgate/registry"
)

// ErrNoInstances is returned when there is nothing to pick from.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer selects one instance per call. Pick is called on every call and
// must be goroutine-safe.
type Balancer interface {
	// Pick selects one of instances. key identifies the call (the operation
	// subpath); strategies without affinity ignore it.
	Pick(key string, instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name: "roundrobin",
// "weighted" or "consistenthash".
func New(name string) (Balancer, error) {
	switch name {
	case "roundrobin", "":
		return &RoundRobinBalancer{}, nil
	case "weighted":
		return &WeightedRandomBalancer{}, nil
	case "consistenthash":
		return NewConsistentHashBalancer(), nil
	default:
		return nil, errors.New("loadbalance: unknown strategy " + name)
	}
}
