package fingerprint

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStoreFromClient(rdb), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte(`{"v":1}`), time.Hour))

	val, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"v":1}`), val)

	valid, err := s.Valid(ctx, "k")
	require.NoError(t, err)
	assert.True(t, valid)
}

func TestRedisStoreMiss(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisStore(t)

	_, ok, err := s.Get(ctx, "absent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisStore(t)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
