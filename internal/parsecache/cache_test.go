package parsecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundtrip(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)
	defer c.Close()

	c.Set("/a.ts", Bundle{Source: "x"})
	got, ok := c.Get("/a.ts")
	require.True(t, ok)
	assert.Equal(t, "x", got.Source)
}

func TestGetMiss(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)
	defer c.Close()

	_, ok := c.Get("/missing.ts")
	assert.False(t, ok)
}

func TestInvalidate(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)
	defer c.Close()

	c.Set("/a.ts", Bundle{Source: "x"})
	c.Invalidate("/a.ts")
	_, ok := c.Get("/a.ts")
	assert.False(t, ok)
}

func TestDefaultCapacityUsedWhenNonPositive(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, c)
}
