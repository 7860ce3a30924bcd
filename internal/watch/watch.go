// Package watch signals changes to a rails directory, debounced.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 150 * time.Millisecond

// DefaultExtensions are the files whose changes trigger a reload.
var DefaultExtensions = []string{".co", ".yml", ".yaml"}

// Watcher reports changes under a directory. It implements ports.Watchable.
type Watcher struct {
	Dir        string
	Debounce   time.Duration
	Extensions []string
	Logger     *slog.Logger
}

// New creates a watcher for dir with the default debounce and extensions.
func New(dir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{
		Dir:        dir,
		Debounce:   DefaultDebounce,
		Extensions: DefaultExtensions,
		Logger:     logger.With("component", "watch"),
	}
}

// Watch starts watching. The returned channel receives one value per burst of
// changes and is closed when ctx is done.
func (w *Watcher) Watch(ctx context.Context) (<-chan struct{}, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := w.addTree(fw); err != nil {
		fw.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	// fire is never closed, so a timer firing during shutdown cannot panic.
	fire := make(chan struct{}, 1)
	d := newDebouncer(w.Debounce)
	notify := func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	}

	go func() {
		defer close(out)
		defer fw.Close()
		defer d.stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-fire:
				select {
				case out <- struct{}{}:
				default:
				}
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					// New subdirectories must be watched too.
					if isDir(ev.Name) {
						_ = fw.Add(ev.Name)
					}
				}
				if !w.relevant(ev) {
					continue
				}
				w.Logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
				d.trigger(notify)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.Logger.Warn("watcher error", "err", err)
			}
		}
	}()
	return out, nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.Dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("failed to watch directory %q: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return slices.Contains(w.Extensions, strings.ToLower(filepath.Ext(ev.Name)))
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// debouncer runs the last triggered callback after a quiet interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	stopped  bool
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{interval: interval}
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
