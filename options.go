package railyard

import (
	"log/slog"
	"time"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/aretw0/railyard/pkg/rails"
	"github.com/aretw0/railyard/pkg/registry"
)

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithSource adds an in-memory rail file. With an empty directory the engine
// compiles only these sources.
func WithSource(name string, data []byte) Option {
	return func(e *Engine) {
		e.sources = append(e.sources, compiler.Source{Name: name, Data: data})
	}
}

// WithConfigYAML supplies the config.yml used when the engine has no directory.
func WithConfigYAML(data []byte) Option {
	return func(e *Engine) {
		e.configYAML = data
	}
}

// WithAction registers a host action for execute steps.
func WithAction(name string, fn registry.ActionFunc) Option {
	return func(e *Engine) {
		e.actions.Register(name, fn)
	}
}

// WithActions replaces the action registry.
func WithActions(r *registry.Registry) Option {
	return func(e *Engine) {
		e.actions = r
	}
}

// WithGuard registers a host guard. Rails can reference it by name at any
// checkpoint or check step.
func WithGuard(name string, g rails.Guard) Option {
	return func(e *Engine) {
		e.guards[name] = g
	}
}

// WithProvider sets the model used for embeddings and completions, bypassing
// the models section of config.yml.
func WithProvider(p ports.Provider) Option {
	return func(e *Engine) {
		e.embedder = p
		e.completer = p
	}
}

// WithEmbedder overrides only the embedding model.
func WithEmbedder(emb ports.Embedder) Option {
	return func(e *Engine) {
		e.embedder = emb
	}
}

// WithCompleter overrides only the completion model.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) {
		e.completer = c
	}
}

// WithStore sets the session store, bypassing the redis section of config.yml.
// Masking and encryption middleware from config.yml still apply.
func WithStore(s ports.SessionStore) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithLocker enables distributed locking of sessions.
func WithLocker(l ports.DistributedLocker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithIndex sets the vector index behind the knowledge base.
func WithIndex(x ports.VectorIndex) Option {
	return func(e *Engine) {
		e.index = x
	}
}

// WithDocumentLoader adds a knowledge source ingested at startup.
func WithDocumentLoader(l ports.DocumentLoader) Option {
	return func(e *Engine) {
		e.loaders = append(e.loaders, l)
	}
}

// WithRetriever replaces the knowledge base entirely.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) {
		e.retriever = r
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = e.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTurnTimeout overrides session.turn_timeout.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.turnTimeout = d
	}
}
