package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_SignalsRelevantChanges(t *testing.T) {
	dir := t.TempDir()
	w := New(dir, nil)
	w.Debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := w.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-ch:
		t.Fatal("irrelevant file triggered a change")
	case <-time.After(100 * time.Millisecond):
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "main.co"), []byte("define flow x"), 0o644))
	}
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond, "channel closes after cancel")
}

func TestWatcher_MissingDir(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil).Watch(context.Background())
	assert.Error(t, err)
}

func TestWatcher_Relevant(t *testing.T) {
	w := New(".", nil)
	tests := []struct {
		ev   fsnotify.Event
		want bool
	}{
		{fsnotify.Event{Name: "a.co", Op: fsnotify.Write}, true},
		{fsnotify.Event{Name: "config.YML", Op: fsnotify.Create}, true},
		{fsnotify.Event{Name: "a.co", Op: fsnotify.Chmod}, false},
		{fsnotify.Event{Name: ".a.co", Op: fsnotify.Write}, false},
		{fsnotify.Event{Name: "a.go", Op: fsnotify.Write}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, w.relevant(tt.ev), tt.ev.String())
	}
}
