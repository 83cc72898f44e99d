//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/example/domestyx/internal/config"
)

func TestRedisRevocationList(t *testing.T) {
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	url, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := New(ctx, config.RedisConfig{URL: url})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Health(ctx))

	trl := NewRevocationList(client)
	require.IsType(t, &RedisRevocationList{}, trl)

	require.NoError(t, trl.Revoke(ctx, "jti-1", time.Second))
	revoked, err := trl.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = trl.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	ttl, err := client.TTL(ctx, revokedTokenKeyPrefix+"jti-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
