package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opgate/registry"
)

var testInstances = []registry.Instance{
	{Addr: "http://10.0.0.1:9991/operations/", Weight: 10, Version: "1.0"},
	{Addr: "http://10.0.0.2:9991/operations/", Weight: 5, Version: "1.0"},
	{Addr: "http://10.0.0.3:9991/operations/", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	// Pick 3 times, should cycle through all instances
	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick("", testInstances)
		require.NoError(t, err)
		results[i] = inst.Addr
	}
	assert.ElementsMatch(t, []string{testInstances[0].Addr, testInstances[1].Addr, testInstances[2].Addr}, results)

	// Pick again, should wrap around to first
	inst, err := b.Pick("", testInstances)
	require.NoError(t, err)
	assert.Equal(t, results[0], inst.Addr)
}

func TestEmptyInstances(t *testing.T) {
	for _, name := range []string{"roundrobin", "weighted", "consistenthash"} {
		b, err := New(name)
		require.NoError(t, err)
		_, err = b.Pick("Arith.Add", nil)
		assert.ErrorIs(t, err, ErrNoInstances, b.Name())
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("random")
	assert.Error(t, err)
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick("", testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so .1 and .3 should be ~2x of .2
	ratio := float64(counts[testInstances[0].Addr]) / float64(counts[testInstances[1].Addr])
	assert.InDelta(t, 2.0, ratio, 0.5)
}

func TestWeightedRandomZeroWeight(t *testing.T) {
	b := &WeightedRandomBalancer{}
	inst, err := b.Pick("", []registry.Instance{{Addr: "a"}})
	require.NoError(t, err)
	assert.Equal(t, "a", inst.Addr)
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	// Same key should always map to the same instance
	inst1, err := b.Pick("User.Get", testInstances)
	require.NoError(t, err)
	inst2, err := b.Pick("User.Get", testInstances)
	require.NoError(t, err)
	assert.Equal(t, inst1.Addr, inst2.Addr)

	// Different keys should spread over more than one instance
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.Pick(fmt.Sprintf("key-%d", i), testInstances)
		require.NoError(t, err)
		seen[inst.Addr] = true
	}
	assert.GreaterOrEqual(t, len(seen), 2)
}

func TestConsistentHashRebuildsOnChange(t *testing.T) {
	b := NewConsistentHashBalancer()

	first, err := b.Pick("User.Get", testInstances)
	require.NoError(t, err)

	// Drop the instance the key landed on; the key must move to a survivor
	var rest []registry.Instance
	for _, inst := range testInstances {
		if inst.Addr != first.Addr {
			rest = append(rest, inst)
		}
	}
	moved, err := b.Pick("User.Get", rest)
	require.NoError(t, err)
	assert.NotEqual(t, first.Addr, moved.Addr)

	// Order of the instance list does not matter
	reversed := []registry.Instance{testInstances[2], testInstances[1], testInstances[0]}
	again, err := b.Pick("User.Get", reversed)
	require.NoError(t, err)
	assert.Equal(t, first.Addr, again.Addr)
}
