package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// Providers lists the accepted values of models.provider.
var Providers = []string{"openai", "langchain", "offline"}

// Stores lists the accepted values of knowledge.store.
var Stores = []string{"memory", "qdrant"}

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g., "matcher.threshold").
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found in a configuration.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks structural constraints. Guard kinds and message labels are
// checked later against the loaded rails.
func Validate(cfg *Config) error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !slices.Contains(Providers, cfg.Models.Provider) {
		add("models.provider", "must be one of %s, got %q", strings.Join(Providers, ", "), cfg.Models.Provider)
	}
	if cfg.Models.Temperature < 0 || cfg.Models.Temperature > 2 {
		add("models.temperature", "must be between 0 and 2")
	}
	if cfg.Models.MaxTokens < 0 {
		add("models.max_tokens", "must not be negative")
	}

	if cfg.Matcher.Threshold <= 0 || cfg.Matcher.Threshold > 1 {
		add("matcher.threshold", "must be in (0, 1], got %g", cfg.Matcher.Threshold)
	}
	if cfg.Matcher.TopK < 1 {
		add("matcher.top_k", "must be at least 1")
	}

	seen := make(map[string]bool)
	for i, g := range cfg.Guards {
		field := fmt.Sprintf("guards[%d]", i)
		if g.Name == "" {
			add(field+".name", "is required")
		} else if seen[g.Name] {
			add(field+".name", "duplicate guard %q", g.Name)
		}
		seen[g.Name] = true
		if g.Kind == "" {
			add(field+".kind", "is required")
		}
	}

	if cfg.Session.TurnTimeout <= 0 {
		add("session.turn_timeout", "must be positive")
	}
	if cfg.Session.IdleTimeout < 0 {
		add("session.idle_timeout", "must not be negative")
	}
	if cfg.Session.MaxInputSize < 0 {
		add("session.max_input_size", "must not be negative")
	}

	if _, _, err := cfg.SessionKeys(); err != nil {
		add("session.encryption_key", "%v", err)
	}
	for i, p := range cfg.Session.MaskKeys {
		if _, err := regexp.Compile(p); err != nil {
			add(fmt.Sprintf("session.mask_keys[%d]", i), "invalid pattern: %v", err)
		}
	}

	if cfg.Knowledge.ChunkSize <= 0 {
		add("knowledge.chunk_size", "must be positive")
	}
	if cfg.Knowledge.ChunkOverlap < 0 || cfg.Knowledge.ChunkOverlap >= cfg.Knowledge.ChunkSize {
		add("knowledge.chunk_overlap", "must be in [0, chunk_size)")
	}
	if cfg.Knowledge.TopK < 1 {
		add("knowledge.top_k", "must be at least 1")
	}
	if !slices.Contains(Stores, cfg.Knowledge.Store) {
		add("knowledge.store", "must be one of %s, got %q", strings.Join(Stores, ", "), cfg.Knowledge.Store)
	}
	if cfg.Knowledge.Store == "qdrant" && cfg.Knowledge.Qdrant.Host == "" {
		add("knowledge.qdrant.host", "is required when knowledge.store is qdrant")
	}

	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		add("logging.format", "must be text or json")
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
