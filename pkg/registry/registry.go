// Package registry holds the host-provided actions run by execute steps.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/railyard/pkg/domain"
)

// ActionFunc defines the signature for an action implementation.
// It receives a copy of the session context and returns a value that is
// stored under the step's $variable, if any.
type ActionFunc func(ctx context.Context, vars map[string]any) (any, error)

// Registry manages the available actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ActionFunc
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]ActionFunc),
	}
}

// Register adds an action to the registry.
// If an action with the same name exists, it is overwritten.
func (r *Registry) Register(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[name] = fn
}

// Has reports whether an action is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.actions[name]
	return ok
}

// Names returns the registered action names in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.actions))
	for n := range r.actions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute looks up an action by name and runs it.
// Returns domain.ErrUnknownAction if the action is not found.
func (r *Registry) Execute(ctx context.Context, name string, vars map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.actions[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownAction, name)
	}

	return fn(ctx, vars)
}
