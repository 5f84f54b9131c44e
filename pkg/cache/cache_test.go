package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	words []string
}

func TestRistrettoSetGet(t *testing.T) {
	c, err := NewRistretto[entry](Config{}, func(e entry) int64 { return int64(len(e.words)) + 1 })
	require.NoError(t, err)
	defer c.Close()

	c.Set("u1|me", entry{words: []string{"merhaba", "merak"}}, 0)
	c.Wait()

	got, ok := c.Get("u1|me")
	require.True(t, ok)
	assert.Equal(t, []string{"merhaba", "merak"}, got.words)

	_, ok = c.Get("u2|me")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("u1|me")
	assert.False(t, ok)
}

func TestRistrettoTTL(t *testing.T) {
	c, err := NewRistretto[string](Config{}, nil)
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", "v", 20*time.Millisecond)
	c.Wait()
	_, ok := c.Get("k")
	require.True(t, ok)

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestRistrettoClosed(t *testing.T) {
	c, err := NewRistretto[string](Config{}, nil)
	require.NoError(t, err)
	c.Close()
	c.Close()

	c.Set("k", "v", 0)
	_, ok := c.Get("k")
	assert.False(t, ok)
	c.Clear()
	c.Wait()
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{TTL: time.Minute}.withDefaults()
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Equal(t, int64(defaultMaxCost), cfg.MaxCost)
	assert.Equal(t, int64(defaultBufferItems), cfg.BufferItems)
}
