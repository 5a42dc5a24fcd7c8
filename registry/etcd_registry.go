package registry

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/opgate/"

// EtcdRegistry implements Registry on etcd v3:
//
//	Key:   /opgate/{service}/{addr}
//	Value: JSON-encoded Instance
//
// Registrations hold a TTL lease kept alive in the background, so a gateway
// that dies disappears once its lease expires.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared by all calls
	logger *zap.Logger
}

// NewEtcdRegistry connects to the given etcd endpoints. logger may be nil.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
		Logger:    logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd: %w", err)
	}
	return &EtcdRegistry{client: c, logger: logger}, nil
}

func serviceKey(service string) string {
	return keyPrefix + service + "/"
}

// Register puts instance under a lease of ttl seconds and keeps the lease
// alive until the etcd client is closed.
//
// The keep-alive is bound to a background context, not ctx: it has to outlive
// the call that registered the instance.
func (r *EtcdRegistry) Register(ctx context.Context, service string, instance Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, serviceKey(service)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("registry: put %s: %w", instance.Addr, err)
	}

	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keep alive: %w", err)
	}

	// Drain keep-alive responses so the channel never fills up
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keep-alive stopped", zap.String("service", service), zap.String("addr", instance.Addr))
	}()
	return nil
}

// Deregister removes an instance right away instead of waiting for its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, service string, addr string) error {
	_, err := r.client.Delete(ctx, serviceKey(service)+addr)
	if err != nil {
		return fmt.Errorf("registry: delete %s: %w", addr, err)
	}
	return nil
}

// Discover lists every instance currently registered under service.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, serviceKey(service), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", service, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close closes the etcd client, which also stops every lease keep-alive.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
