package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
)

// Mask replaces masked context values.
const Mask = "***"

type maskingMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewMaskingMiddleware creates a middleware that masks the values of context keys
// matching any of the patterns before they reach the store. Nested maps are walked.
// The in-memory session is never modified.
func NewMaskingMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &maskingMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *maskingMiddleware) Save(ctx context.Context, sessionID string, sess *domain.Session) error {
	cloned := sess.Clone()
	cloned.Context = deepCopyMap(sess.Context)
	maskMap(cloned.Context, m.patterns)
	return m.next.Save(ctx, sessionID, cloned)
}

func (m *maskingMiddleware) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *maskingMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *maskingMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(sub)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			maskMap(sub, patterns)
			continue
		}
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				break
			}
		}
	}
}
