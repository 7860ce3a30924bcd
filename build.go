package railyard

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/internal/config"
	"github.com/aretw0/railyard/internal/matcher"
	"github.com/aretw0/railyard/internal/runtime"
	"github.com/aretw0/railyard/internal/validator"
	"github.com/aretw0/railyard/pkg/adapters/file"
	"github.com/aretw0/railyard/pkg/adapters/langchain"
	loamAdapter "github.com/aretw0/railyard/pkg/adapters/loam"
	"github.com/aretw0/railyard/pkg/adapters/memory"
	"github.com/aretw0/railyard/pkg/adapters/openai"
	"github.com/aretw0/railyard/pkg/adapters/qdrant"
	"github.com/aretw0/railyard/pkg/adapters/redis"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/knowledge"
	"github.com/aretw0/railyard/pkg/persistence/middleware"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/aretw0/railyard/pkg/rails"
	"github.com/aretw0/railyard/pkg/runner"
)

// snapshot is one compiled rail set with everything derived from it.
// Turns hold a snapshot for their whole duration, so a reload never changes
// the rails under a running turn.
type snapshot struct {
	rails       *domain.Rails
	cfg         *config.Config
	matcher     *matcher.Matcher
	enforcer    *rails.Enforcer
	engine      *runtime.Engine
	turnTimeout time.Duration
	sanitizer   runner.Sanitizer
	loadedAt    time.Time
}

func (e *Engine) sourceName() string {
	if e.dir == "" {
		return "inline"
	}
	return e.dir
}

// compile reads and validates the rails. Every failure is a *ConfigLoadError.
func (e *Engine) compile() (*domain.Rails, *config.Config, error) {
	var (
		r   *domain.Rails
		cfg *config.Config
		err error
	)
	if e.dir != "" {
		r, cfg, err = compiler.Load(e.dir, e.sources...)
	} else {
		if len(e.sources) == 0 {
			return nil, nil, &ConfigLoadError{Source: e.sourceName(), Err: ErrNoSources}
		}
		cfg = config.Default()
		if e.configYAML != nil {
			if cfg, err = config.Parse(e.configYAML); err != nil {
				return nil, nil, &ConfigLoadError{Source: e.sourceName(), Err: err}
			}
		}
		r, err = compiler.Compile(e.sources, cfg)
	}
	if err != nil {
		return nil, nil, &ConfigLoadError{Source: e.sourceName(), Err: err}
	}

	res := validator.Validate(r, validator.Catalog{
		GuardKinds: e.guardKinds(),
		Actions:    e.actions.Names(),
	})
	e.warnings = e.warnings[:0]
	for _, w := range res.Warnings {
		e.logger.Warn("rails warning", "warning", w.Error())
		e.warnings = append(e.warnings, w.Error())
	}
	if err := res.Err(); err != nil {
		return nil, nil, &ConfigLoadError{Source: e.sourceName(), Err: err}
	}
	return r, cfg, nil
}

func (e *Engine) guardKinds() []string {
	kinds := rails.Kinds()
	for name := range e.guards {
		kinds = append(kinds, name)
	}
	slices.Sort(kinds)
	return kinds
}

// build derives the matcher, enforcer and runtime from compiled rails.
func (e *Engine) build(ctx context.Context, r *domain.Rails, cfg *config.Config) (*snapshot, error) {
	m, err := matcher.New(ctx, e.embedder, r.Intents, r.Matcher, matcher.WithLogger(e.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to index canonical forms: %w", err)
	}

	enfOpts := []rails.Option{rails.WithHooks(e.hooks), rails.WithLogger(e.logger)}
	for name, g := range e.guards {
		enfOpts = append(enfOpts, rails.WithGuard(name, g))
	}
	enf, err := rails.NewEnforcer(r, rails.Deps{
		Completer:  e.completer,
		Generation: r.Generation,
		Logger:     e.logger,
	}, enfOpts...)
	if err != nil {
		return nil, &ConfigLoadError{Source: e.sourceName(), Err: err}
	}

	rtOpts := []runtime.Option{
		runtime.WithCompleter(e.completer),
		runtime.WithActions(e.actions),
		runtime.WithLifecycleHooks(e.hooks),
		runtime.WithLogger(e.logger),
	}
	if e.retriever != nil {
		rtOpts = append(rtOpts, runtime.WithRetriever(e.retriever))
	}

	timeout := e.turnTimeout
	if timeout <= 0 {
		timeout = cfg.Session.TurnTimeout
	}
	return &snapshot{
		rails:       r,
		cfg:         cfg,
		matcher:     m,
		enforcer:    enf,
		engine:      runtime.New(r, m, enf, rtOpts...),
		turnTimeout: timeout,
		sanitizer: runner.Sanitizer{
			MaxSize:         cfg.Session.MaxInputSize,
			KeepFormatChars: cfg.Session.KeepFormatChars,
		},
		loadedAt: time.Now(),
	}, nil
}

// newProvider builds the model client selected by the models section.
func newProvider(m config.ModelsConfig) (ports.Provider, error) {
	switch m.Provider {
	case "offline":
		return memory.NewProvider(0), nil
	case "langchain":
		return langchain.NewOpenAI(langchain.Config{
			CompletionModel: m.CompletionModel,
			EmbeddingModel:  m.EmbeddingModel,
			APIKey:          m.APIKey,
			BaseURL:         m.BaseURL,
		})
	case "openai":
		return openai.New(openai.Config{
			APIKey:          m.APIKey,
			BaseURL:         m.BaseURL,
			CompletionModel: m.CompletionModel,
			EmbeddingModel:  m.EmbeddingModel,
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", m.Provider)
	}
}

// openStore returns the session store wrapped with the configured middleware.
func (e *Engine) openStore(cfg *config.Config) (ports.SessionStore, error) {
	store := e.store
	if store == nil {
		if cfg.Redis.Addr != "" {
			rs, err := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB,
				redis.WithPrefix(cfg.Redis.Prefix),
				redis.WithTTL(cfg.Session.IdleTimeout),
			)
			if err != nil {
				return nil, err
			}
			e.closers = append(e.closers, rs.Client().Close)
			if e.locker == nil {
				e.locker = redis.NewLocker(rs.Client(), cfg.Redis.Prefix)
			}
			store = rs
			e.logger.Info("using redis session store", "addr", cfg.Redis.Addr)
		} else if cfg.Session.Dir != "" {
			dir := e.resolve(cfg.Session.Dir)
			store = file.New(dir)
			e.logger.Info("using file session store", "dir", dir)
		} else {
			store = memory.NewStore()
		}
	}

	var mws []middleware.Middleware
	if len(cfg.Session.MaskKeys) > 0 {
		mw, err := middleware.NewMaskingMiddleware(cfg.Session.MaskKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	active, fallback, err := cfg.SessionKeys()
	if err != nil {
		return nil, fmt.Errorf("invalid session encryption key: %w", err)
	}
	if active != nil {
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}

// openKnowledge ingests the configured documents into a knowledge base.
// It leaves the retriever unset when there is nothing to ingest.
func (e *Engine) openKnowledge(ctx context.Context, cfg *config.Config) error {
	if e.retriever != nil {
		return nil
	}
	kc := cfg.Knowledge
	loaders := slices.Clone(e.loaders)
	if len(kc.Paths) > 0 {
		paths := make([]string, 0, len(kc.Paths))
		for _, p := range kc.Paths {
			paths = append(paths, e.resolve(p))
		}
		loaders = append(loaders, knowledge.NewFileLoader(paths...))
	}
	if kc.Repository != "" {
		l, err := loamAdapter.Open(e.resolve(kc.Repository))
		if err != nil {
			return err
		}
		e.notes = l
		loaders = append(loaders, l)
	}
	if len(loaders) == 0 && e.index == nil {
		return nil
	}

	index := e.index
	if index == nil {
		if kc.Store == "qdrant" {
			q, err := qdrant.New(qdrant.Config{
				Host:       kc.Qdrant.Host,
				Port:       kc.Qdrant.Port,
				APIKey:     kc.Qdrant.APIKey,
				UseTLS:     kc.Qdrant.UseTLS,
				Collection: kc.Qdrant.Collection,
			}, e.logger)
			if err != nil {
				return err
			}
			e.closers = append(e.closers, q.Close)
			index = q
		} else {
			index = memory.NewIndex()
		}
	}

	splitter, err := knowledge.NewSplitter(kc.ChunkSize, kc.ChunkOverlap)
	if err != nil {
		return err
	}
	kb, err := knowledge.New(e.embedder, index,
		knowledge.WithTopK(kc.TopK),
		knowledge.WithSplitter(splitter),
		knowledge.WithLogger(e.logger),
	)
	if err != nil {
		return err
	}
	n, err := kb.Load(ctx, loaders...)
	if err != nil {
		return fmt.Errorf("failed to ingest knowledge: %w", err)
	}
	e.logger.Info("knowledge ingested", "chunks", n, "sources", len(loaders))
	e.kb = kb
	e.knowledgeLoaders = loaders
	e.retriever = kb
	return nil
}

func (e *Engine) resolve(p string) string {
	if filepath.IsAbs(p) || e.dir == "" {
		return p
	}
	return filepath.Join(e.dir, p)
}
