package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticRegisterAndDiscover(t *testing.T) {
	ctx := context.Background()
	reg := NewStatic("gateway", Instance{Addr: "http://a/operations/", Weight: 1})

	require.NoError(t, reg.Register(ctx, "gateway", Instance{Addr: "http://b/operations/", Weight: 2}, 10))
	require.NoError(t, reg.Register(ctx, "gateway", Instance{Addr: "http://a/operations/", Weight: 5}, 10))

	instances, err := reg.Discover(ctx, "gateway")
	require.NoError(t, err)
	require.Len(t, instances, 2)
	assert.Equal(t, 5, instances[0].Weight, "re-registering replaces the entry")

	require.NoError(t, reg.Deregister(ctx, "gateway", "http://a/operations/"))
	instances, err = reg.Discover(ctx, "gateway")
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "http://b/operations/", instances[0].Addr)
}

func TestStaticDiscoverReturnsCopy(t *testing.T) {
	ctx := context.Background()
	reg := NewStatic("gateway", Instance{Addr: "http://a/operations/"})

	instances, err := reg.Discover(ctx, "gateway")
	require.NoError(t, err)
	instances[0].Addr = "mutated"

	again, err := reg.Discover(ctx, "gateway")
	require.NoError(t, err)
	assert.Equal(t, "http://a/operations/", again[0].Addr)
}

func TestStaticUnknownService(t *testing.T) {
	instances, err := NewStatic("gateway").Discover(context.Background(), "other")
	require.NoError(t, err)
	assert.Empty(t, instances)
}
