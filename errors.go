package railyard

import (
	"errors"
	"fmt"

	"github.com/aretw0/railyard/internal/compiler"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/session"
)

// Errors returned by the session API.
var (
	ErrSessionNotFound = domain.ErrSessionNotFound
	ErrSessionExists   = session.ErrSessionExists
	ErrInvalidInput    = domain.ErrInvalidInput
	ErrNoSources       = errors.New("no rail sources: pass a directory or WithSource")
)

// ConfigLoadError reports rails that failed to load. It is fatal: an engine
// is never built from a partially valid rail set.
type ConfigLoadError struct {
	// Source is the rails directory, or "inline" for WithSource rails.
	Source string
	Err    error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("failed to load rails from %s: %v", e.Source, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// Problems lists the individual compile and validation errors, if any.
func (e *ConfigLoadError) Problems() []string {
	var list *compiler.ErrorList
	if !errors.As(e.Err, &list) {
		return []string{e.Err.Error()}
	}
	out := make([]string, 0, len(list.Errors))
	for _, p := range list.Errors {
		out = append(out, p.Error())
	}
	return out
}
