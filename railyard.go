package railyard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/internal/config"
	"github.com/aretw0/railyard/internal/watch"
	loamAdapter "github.com/aretw0/railyard/pkg/adapters/loam"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/knowledge"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/aretw0/railyard/pkg/rails"
	"github.com/aretw0/railyard/pkg/registry"
	"github.com/aretw0/railyard/pkg/session"
	"github.com/google/uuid"
)

// Engine is the high-level entry point for the Railyard library.
// It owns the compiled rails, the session store and the model clients, and
// exposes the session API. It is safe for concurrent use.
type Engine struct {
	dir        string
	sources    []compiler.Source
	configYAML []byte

	embedder    ports.Embedder
	completer   ports.Completer
	store       ports.SessionStore
	locker      ports.DistributedLocker
	index       ports.VectorIndex
	retriever   ports.Retriever
	loaders     []ports.DocumentLoader
	actions     *registry.Registry
	guards      map[string]rails.Guard
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	turnTimeout time.Duration

	// Name labels the rails, e.g. in logs and the CLI banner.
	Name string

	sessions         *session.Manager
	kb               *knowledge.Base
	notes            *loamAdapter.Loader
	knowledgeLoaders []ports.DocumentLoader
	closers          []func() error
	warnings         []string

	snap     atomic.Pointer[snapshot]
	reloadMu sync.Mutex
}

// New compiles the rails in dir and prepares the session API.
// dir may be empty when the rails are supplied with WithSource.
// Rails that fail to parse or validate yield a *ConfigLoadError.
func New(dir string, opts ...Option) (*Engine, error) {
	eng, err := configure(dir, opts)
	if err != nil {
		return nil, err
	}

	r, cfg, err := eng.compile()
	if err != nil {
		return nil, err
	}

	if eng.embedder == nil || eng.completer == nil {
		p, err := newProvider(cfg.Models)
		if err != nil {
			return nil, &ConfigLoadError{Source: eng.sourceName(), Err: err}
		}
		if eng.embedder == nil {
			eng.embedder = p
		}
		if eng.completer == nil {
			eng.completer = p
		}
	}

	ctx := context.Background()
	if err := eng.openKnowledge(ctx, cfg); err != nil {
		eng.Close()
		return nil, err
	}

	snap, err := eng.build(ctx, r, cfg)
	if err != nil {
		eng.Close()
		return nil, err
	}
	eng.snap.Store(snap)

	store, err := eng.openStore(cfg)
	if err != nil {
		eng.Close()
		return nil, err
	}
	eng.sessions = session.NewManager(store,
		session.WithLocker(eng.locker),
		session.WithLogger(eng.logger),
	)

	eng.logger.Info("rails loaded",
		"intents", len(r.Intents),
		"flows", len(r.Flows),
		"guards", len(r.Guards),
	)
	return eng, nil
}

func configure(dir string, opts []Option) (*Engine, error) {
	eng := &Engine{
		dir:     dir,
		actions: registry.NewRegistry(),
		guards:  make(map[string]rails.Guard),
	}
	for _, opt := range opts {
		opt(eng)
	}

	if eng.logger == nil {
		eng.logger = slog.New(slog.DiscardHandler)
	}
	if dir != "" {
		absPath, err := filepath.Abs(dir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.dir = absPath
		eng.Name = filepath.Base(absPath)
		eng.logger = eng.logger.With("rails", eng.Name)
	}
	return eng, nil
}

// Report is the outcome of Check.
type Report struct {
	Rails    *domain.Rails
	Warnings []string
}

// Check compiles and validates the rails like New, without contacting model
// providers, stores or indexes. Invalid rails yield a *ConfigLoadError.
func Check(dir string, opts ...Option) (*Report, error) {
	eng, err := configure(dir, opts)
	if err != nil {
		return nil, err
	}
	r, _, err := eng.compile()
	if err != nil {
		return nil, err
	}
	return &Report{Rails: r, Warnings: eng.warnings}, nil
}

// StartSession creates a session in the AwaitingUser state and returns its ID.
func (e *Engine) StartSession(ctx context.Context) (string, error) {
	id := uuid.NewString()
	if _, err := e.sessions.Create(ctx, id); err != nil {
		return "", err
	}
	e.logger.Debug("session started", "session_id", id)
	return id, nil
}

// SubmitUserMessage runs one turn. Turns on the same session are serialized.
// The reply is an error only for unknown sessions, invalid input, store
// failures and caller cancellation; guard rejections, provider failures and
// turn timeouts come back as a rejected reply.
func (e *Engine) SubmitUserMessage(ctx context.Context, sessionID, text string) (*domain.Reply, error) {
	snap := e.snap.Load()
	clean, err := snap.sanitizer.Clean(text)
	if err != nil {
		return nil, err
	}

	var reply *domain.Reply
	err = e.sessions.Update(ctx, sessionID, func(ctx context.Context, sess *domain.Session) error {
		turnCtx, cancel := context.WithTimeout(ctx, snap.turnTimeout)
		defer cancel()
		r, err := snap.engine.Turn(turnCtx, sess, clean)
		if err != nil {
			return err
		}
		reply = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// EndSession discards a session. Unknown IDs yield ErrSessionNotFound.
func (e *Engine) EndSession(ctx context.Context, sessionID string) error {
	return e.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		store := e.sessions.Store()
		if _, err := store.Load(ctx, sessionID); err != nil {
			return err
		}
		if err := store.Delete(ctx, sessionID); err != nil {
			return err
		}
		e.logger.Debug("session ended", "session_id", sessionID)
		return nil
	})
}

// Session returns a copy of the stored session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*domain.Session, error) {
	return e.sessions.Load(ctx, sessionID)
}

// Sessions lists the IDs of stored sessions.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.List(ctx)
}

// Rails returns the rail set currently in effect.
func (e *Engine) Rails() *domain.Rails {
	return e.snap.Load().rails
}

// Config returns the configuration of the current rails.
func (e *Engine) Config() *config.Config {
	return e.snap.Load().cfg
}

// Reload recompiles the rails. On failure the previous rails stay in effect
// and the error is returned. Knowledge and store settings are not reloaded.
func (e *Engine) Reload(ctx context.Context) error {
	e.reloadMu.Lock()
	defer e.reloadMu.Unlock()

	r, cfg, err := e.compile()
	if err != nil {
		e.logger.Error("reload failed, keeping previous rails", "error", err)
		return err
	}
	snap, err := e.build(ctx, r, cfg)
	if err != nil {
		e.logger.Error("reload failed, keeping previous rails", "error", err)
		return err
	}
	e.snap.Store(snap)
	e.logger.Info("rails reloaded", "intents", len(r.Intents), "flows", len(r.Flows))
	return nil
}

// Watch reloads the rails whenever a file in the rails directory changes and
// re-ingests knowledge when its loam repository changes. Each reload result is
// sent on the returned channel, which is closed when ctx is done.
func (e *Engine) Watch(ctx context.Context) (<-chan error, error) {
	if e.dir == "" {
		return nil, errors.New("watch requires a rails directory")
	}
	changes, err := watch.New(e.dir, e.logger).Watch(ctx)
	if err != nil {
		return nil, err
	}

	var notes <-chan struct{}
	if e.notes != nil {
		if notes, err = e.notes.Watch(ctx); err != nil {
			e.logger.Warn("knowledge watch unavailable", "error", err)
			notes = nil
		}
	}

	out := make(chan error, 1)
	go func() {
		defer close(out)
		for {
			var err error
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				err = e.Reload(ctx)
			case _, ok := <-notes:
				if !ok {
					notes = nil
					continue
				}
				err = e.reingest(ctx)
			}
			select {
			case out <- err:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (e *Engine) reingest(ctx context.Context) error {
	if e.kb == nil {
		return nil
	}
	n, err := e.kb.Sync(ctx, e.knowledgeLoaders...)
	if err != nil {
		e.logger.Error("knowledge re-ingest failed", "error", err)
		return err
	}
	e.logger.Info("knowledge re-ingested", "chunks", n)
	return nil
}

// NewSweeper returns a sweeper that deletes sessions idle for longer than
// session.idle_timeout, on session.sweep_schedule.
func (e *Engine) NewSweeper() *session.Sweeper {
	cfg := e.Config()
	return session.NewSweeper(e.sessions, cfg.Session.IdleTimeout, cfg.Session.SweepSchedule, e.logger)
}

// Close releases store and index connections.
func (e *Engine) Close() error {
	var errs []error
	for _, c := range e.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
