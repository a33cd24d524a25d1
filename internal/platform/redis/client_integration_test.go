//go:build integration

package redis_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"kycgate/internal/platform/config"
	platformredis "kycgate/internal/platform/redis"
	"kycgate/pkg/testutil/containers"
)

func TestNew(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	client, err := platformredis.New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 4})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Health(ctx))

	require.NoError(t, client.Close())
	require.Error(t, client.Health(ctx), "a closed client must fail its health check")
}

func TestNewRejectsEmptyURL(t *testing.T) {
	_, err := platformredis.New(context.Background(), config.RedisConfig{})
	require.Error(t, err)
}
