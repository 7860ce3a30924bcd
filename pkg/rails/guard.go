package rails

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/mitchellh/mapstructure"
)

// Input is the subject handed to a guard.
type Input struct {
	SessionID  string
	Checkpoint domain.Checkpoint
	// Text is the user message (input, dialog), the candidate bot message (output)
	// or the joined retrieved context (retrieval).
	Text string
	// UserMessage is the latest user utterance.
	UserMessage string
	// Chunks are the retrieved knowledge chunks (retrieval only).
	Chunks []domain.Chunk
	// Context is the session context. Guards must not modify it.
	Context map[string]any
}

// Guard checks a subject at a checkpoint. An error means the guard could not
// decide (e.g. its model call failed); the enforcer treats it as service unavailable.
type Guard interface {
	Check(ctx context.Context, in Input) (domain.GuardResult, error)
}

// GuardFunc adapts a function to the Guard interface.
type GuardFunc func(ctx context.Context, in Input) (domain.GuardResult, error)

// Check calls f.
func (f GuardFunc) Check(ctx context.Context, in Input) (domain.GuardResult, error) {
	return f(ctx, in)
}

// Deps are the services available to guard factories.
type Deps struct {
	Completer  ports.Completer
	Generation domain.CompletionParams
	Logger     *slog.Logger
}

// Factory builds a guard of one kind from its configuration.
type Factory func(spec domain.GuardSpec, deps Deps) (Guard, error)

var (
	kindsMu sync.RWMutex
	kinds   = map[string]Factory{
		"blocklist":         newBlocklist,
		"max_length":        newMaxLength,
		"pii":               newPII,
		"jailbreak":         newJailbreak,
		"sanitize_html":     newSanitizeHTML,
		"relevance":         newRelevance,
		"self_check_input":  newSelfCheckInput,
		"self_check_output": newSelfCheckOutput,
	}
)

// RegisterKind makes a new guard kind available to config.yml.
// It panics if the kind is already registered.
func RegisterKind(kind string, f Factory) {
	kindsMu.Lock()
	defer kindsMu.Unlock()
	if _, dup := kinds[kind]; dup {
		panic(fmt.Sprintf("rails: guard kind %q already registered", kind))
	}
	kinds[kind] = f
}

// Kinds returns the registered guard kinds in lexical order.
func Kinds() []string {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func factory(kind string) (Factory, bool) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	f, ok := kinds[kind]
	return f, ok
}

// decodeParams decodes free-form YAML params into a typed options struct.
func decodeParams(spec domain.GuardSpec, out any) error {
	if len(spec.Params) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(spec.Params); err != nil {
		return fmt.Errorf("guard %q: invalid params: %w", spec.Name, err)
	}
	return nil
}
