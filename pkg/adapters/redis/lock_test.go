package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/railyard/pkg/adapters/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocker_Exclusive(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:s1"))

	waitCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "s1", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:s1"))

	unlock2, err := locker.Lock(ctx, "s1", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock2(ctx))
}

func TestLocker_UnlockDoesNotStealForeignLock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "s1", time.Second)
	require.NoError(t, err)

	// Simulate expiry followed by another holder.
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("test:lock:s1", "someone-else"))

	require.NoError(t, unlock(ctx))
	v, err := mr.Get("test:lock:s1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", v)
}
