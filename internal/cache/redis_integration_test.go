//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veldtlabs/mentorkb/internal/testutil"
)

func TestRedisCacheIntegration(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRedisContainer(ctx, t)
	t.Cleanup(func() { _ = rc.Terminate(ctx) })

	c, err := NewRedisCache(ctx, RedisConfig{Addr: rc.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)

	// short TTL actually expires
	require.NoError(t, c.Set(ctx, "ttl", []byte("x"), 100*time.Millisecond))
	time.Sleep(300 * time.Millisecond)
	_, err = c.Get(ctx, "ttl")
	assert.ErrorIs(t, err, ErrMiss)
}
