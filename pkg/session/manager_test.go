package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/railyard/pkg/adapters/memory"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/aretw0/railyard/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke lost updates if locking is missing.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Load(ctx, sessionID)
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	manager := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()
	id := "race-test"

	_, err := manager.Create(ctx, id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	writers := 20
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := manager.Update(ctx, id, func(ctx context.Context, s *domain.Session) error {
				n, _ := s.Context["n"].(int)
				s.Context["n"] = n + 1
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sess, err := manager.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, writers, sess.Context["n"])
}

func TestManager_Create(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	sess, err := manager.Create(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwaitingUser, sess.Status)

	_, err = manager.Create(ctx, "s1")
	assert.ErrorIs(t, err, session.ErrSessionExists)
}

func TestManager_UpdateMissing(t *testing.T) {
	manager := session.NewManager(memory.NewStore())

	err := manager.Update(context.Background(), "ghost", func(context.Context, *domain.Session) error { return nil })
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_UpdateErrorDiscardsChanges(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()
	_, err := manager.Create(ctx, "s1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = manager.Update(ctx, "s1", func(ctx context.Context, s *domain.Session) error {
		s.Context["x"] = "dirty"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	sess, err := manager.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotContains(t, sess.Context, "x")
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	args := m.Called(ctx, key, ttl)
	if fn, ok := args.Get(0).(ports.UnlockFunc); ok {
		return fn, args.Error(1)
	}
	return nil, args.Error(1)
}

func TestManager_DistributedLock(t *testing.T) {
	locker := new(mockLocker)
	var released atomic.Bool
	unlock := ports.UnlockFunc(func(context.Context) error {
		released.Store(true)
		return nil
	})
	locker.On("Lock", mock.Anything, "s1", 45*time.Second).Return(unlock, nil).Once()

	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(45*time.Second))
	err := manager.WithLock(context.Background(), "s1", func(context.Context) error { return nil })

	require.NoError(t, err)
	assert.True(t, released.Load())
	locker.AssertExpectations(t)
}

func TestManager_DistributedLockFailure(t *testing.T) {
	locker := new(mockLocker)
	locker.On("Lock", mock.Anything, "s1", session.DefaultLockTTL).Return(nil, context.DeadlineExceeded)

	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker))
	called := false
	err := manager.WithLock(context.Background(), "s1", func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
