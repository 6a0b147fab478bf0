package ratelimit

import (
	"context"
	"strconv"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestMemory_FixedWindow(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, resetIn, err := m.Hit(ctx, "ip:10.0.0.1", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, count)
		assert.Equal(t, time.Hour, resetIn)
	}

	count, _, err := m.Hit(ctx, "ip:10.0.0.2", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "keys are counted separately")

	now = now.Add(59 * time.Minute)
	count, resetIn, err := m.Hit(ctx, "ip:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
	assert.Equal(t, time.Minute, resetIn)

	now = now.Add(time.Minute)
	count, resetIn, err = m.Hit(ctx, "ip:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "a new window starts at the boundary")
	assert.Equal(t, time.Hour, resetIn)
}

func TestMemory_SweepsExpiredBuckets(t *testing.T) {
	m := NewMemory()
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	_, _, err := m.Hit(ctx, "stale", time.Second)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	for i := 0; i < sweepEvery; i++ {
		_, _, err := m.Hit(ctx, "k"+strconv.Itoa(i), time.Hour)
		require.NoError(t, err)
	}

	m.mu.Lock()
	_, ok := m.buckets["stale"]
	m.mu.Unlock()
	assert.False(t, ok)
}

func TestMemory_HonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewMemory().Hit(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRedis_CountsAndExpires(t *testing.T) {
	client, server := newTestRedis(t)
	r := NewRedis(client, "ratelimit")
	ctx := context.Background()

	count, resetIn, err := r.Hit(ctx, "ip:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Hour, resetIn)

	count, resetIn, err = r.Hit(ctx, "ip:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Greater(t, resetIn, time.Duration(0))
	assert.LessOrEqual(t, resetIn, time.Hour)

	ttl := server.TTL("ratelimit:ip:10.0.0.1")
	assert.True(t, ttl > 0 && ttl <= time.Hour, "unexpected ttl %v", ttl)

	server.FastForward(time.Hour)

	count, _, err = r.Hit(ctx, "ip:10.0.0.1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRedis_RestoresMissingExpiry(t *testing.T) {
	client, server := newTestRedis(t)
	r := NewRedis(client, "")
	ctx := context.Background()

	require.NoError(t, server.Set("ip:10.0.0.9", "5"))

	count, resetIn, err := r.Hit(ctx, "ip:10.0.0.9", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(6), count)
	assert.Equal(t, time.Minute, resetIn)
	assert.Equal(t, time.Minute, server.TTL("ip:10.0.0.9"))
}

func TestRedis_ServerDown(t *testing.T) {
	client, server := newTestRedis(t)
	server.Close()

	_, _, err := NewRedis(client, "rl").Hit(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}
