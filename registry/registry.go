// Package registry keeps track of the gateway instances serving operations.
package registry

import (
	"context"
	"sync"
)

// Instance is one gateway. Addr is its operations base URL, e.g.
// "http://10.0.0.7:9991/operations/".
type Instance struct {
	Addr    string `json:"addr"`
	Weight  int    `json:"weight,omitempty"` // Weight for load balancing
	Version string `json:"version,omitempty"`
}

type Registry interface {
	Register(ctx context.Context, service string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, service string, addr string) error
	Discover(ctx context.Context, service string) ([]Instance, error)
}

// Static is an in-memory Registry, for fixed gateway lists and tests.
// TTLs are ignored.
type Static struct {
	mu        sync.RWMutex
	instances map[string][]Instance
}

// NewStatic returns a Static registry holding instances under service.
func NewStatic(service string, instances ...Instance) *Static {
	s := &Static{instances: make(map[string][]Instance)}
	if len(instances) > 0 {
		s.instances[service] = append([]Instance(nil), instances...)
	}
	return s
}

func (s *Static) Register(_ context.Context, service string, instance Instance, _ int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.instances[service]
	for i, inst := range list {
		if inst.Addr == instance.Addr {
			list[i] = instance
			return nil
		}
	}
	s.instances[service] = append(list, instance)
	return nil
}

func (s *Static) Deregister(_ context.Context, service string, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.instances[service]
	for i, inst := range list {
		if inst.Addr == addr {
			s.instances[service] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

// Discover returns a copy of the instances registered under service.
func (s *Static) Discover(_ context.Context, service string) ([]Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Instance(nil), s.instances[service]...), nil
}
