package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_PerKeyBurst(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 1, BurstSize: 2, Enabled: true})
	require.NoError(t, err)

	assert.True(t, l.Allow("s1"))
	assert.True(t, l.Allow("s1"))
	assert.False(t, l.Allow("s1"))

	// other keys have their own bucket
	assert.True(t, l.Allow("s2"))
	assert.Equal(t, []string{"s1", "s2"}, l.Keys())
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 0.1, BurstSize: 1, Enabled: true})
	require.NoError(t, err)

	require.NoError(t, l.Wait(context.Background(), "s1"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "s1"))
}

func TestLimiter_Disabled(t *testing.T) {
	l, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.False(t, l.Enabled())

	for i := 0; i < 1000; i++ {
		assert.True(t, l.Allow("s1"))
	}
	assert.NoError(t, l.Wait(context.Background(), "s1"))
	assert.Empty(t, l.Keys())
}

func TestLimiter_Evict(t *testing.T) {
	l, err := New(Config{RequestsPerSecond: 10, BurstSize: 1, Enabled: true})
	require.NoError(t, err)

	l.Allow("s1")
	time.Sleep(10 * time.Millisecond)
	l.Allow("s2")

	assert.Equal(t, 1, l.Evict(5*time.Millisecond))
	assert.Equal(t, []string{"s2"}, l.Keys())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.Error(t, Config{Enabled: true, BurstSize: 1}.Validate())
	assert.Error(t, Config{Enabled: true, RequestsPerSecond: 1}.Validate())
}
