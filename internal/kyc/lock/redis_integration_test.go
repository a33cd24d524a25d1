//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kycgate/pkg/platform/sentinel"
	"kycgate/pkg/testutil/containers"
)

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	l := NewRedis(rc.Client, 500*time.Millisecond, nil)

	release, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "user-1")
	assert.ErrorIs(t, err, sentinel.ErrLocked)

	release()
	again, err := l.Acquire(ctx, "user-1")
	require.NoError(t, err)

	t.Run("expired lock is not released by its old holder", func(t *testing.T) {
		time.Sleep(700 * time.Millisecond)
		newHolder, err := l.Acquire(ctx, "user-1")
		require.NoError(t, err)

		again()
		_, err = l.Acquire(ctx, "user-1")
		assert.ErrorIs(t, err, sentinel.ErrLocked)
		newHolder()
	})
}
