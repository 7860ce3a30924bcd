package session

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/railyard/internal/logging"
	"github.com/aretw0/railyard/pkg/adapters/memory"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_DeletesIdleSessions(t *testing.T) {
	store := memory.NewStore()
	mgr := NewManager(store)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	stale := domain.NewSession("stale")
	stale.UpdatedAt = now.Add(-2 * time.Hour)
	fresh := domain.NewSession("fresh")
	fresh.UpdatedAt = now.Add(-5 * time.Minute)
	require.NoError(t, store.Save(ctx, "stale", stale))
	require.NoError(t, store.Save(ctx, "fresh", fresh))

	sw := NewSweeper(mgr, time.Hour, "@every 1m", logging.NewNop())
	sw.now = func() time.Time { return now }

	deleted, err := sw.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	ids, _ := store.List(ctx)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestSweeper_StartStop(t *testing.T) {
	sw := NewSweeper(NewManager(memory.NewStore()), time.Hour, "@every 1m", logging.NewNop())

	require.NoError(t, sw.Start(context.Background()))
	assert.NotNil(t, sw.NextRun())

	sw.Stop()
	assert.Nil(t, sw.NextRun())
}

func TestSweeper_InvalidSchedule(t *testing.T) {
	sw := NewSweeper(NewManager(memory.NewStore()), time.Hour, "every minute", logging.NewNop())
	assert.Error(t, sw.Start(context.Background()))
}

func TestSweeper_Disabled(t *testing.T) {
	sw := NewSweeper(NewManager(memory.NewStore()), 0, "@every 1m", logging.NewNop())
	require.NoError(t, sw.Start(context.Background()))
	assert.Nil(t, sw.NextRun())
}
