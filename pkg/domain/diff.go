package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two snapshots of a session.
// It is serialized to JSON and streamed to clients as a partial update.
type SessionDiff struct {
	SessionID string `json:"session_id"`

	Status *Status `json:"status,omitempty"`

	// ActiveFlow is set when the active flow changed. An empty string means no flow is active.
	ActiveFlow *string `json:"active_flow,omitempty"`

	// Context contains only changed, added or deleted keys.
	// Deleted keys are present with a nil value.
	Context map[string]any `json:"context,omitempty"`

	// History contains the utterances appended since the old snapshot.
	History []Utterance `json:"history,omitempty"`
}

// Diff calculates the difference between oldSess and newSess.
// If oldSess is nil, the diff describes the whole of newSess.
// It returns nil when nothing changed.
func Diff(oldSess, newSess *Session) *SessionDiff {
	if newSess == nil {
		return nil
	}

	diff := &SessionDiff{SessionID: newSess.ID}

	if oldSess == nil || oldSess.Status != newSess.Status {
		diff.Status = &newSess.Status
	}
	newFlow := newSess.ActiveFlow()
	if oldSess == nil && newFlow != "" || oldSess != nil && oldSess.ActiveFlow() != newFlow {
		diff.ActiveFlow = &newFlow
	}
	diff.Context = diffContext(oldSess, newSess)
	diff.History = diffHistory(oldSess, newSess)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffContext(old, new *Session) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Context {
			delta[k] = v
		}
	} else {
		for k, newVal := range new.Context {
			if oldVal, exists := old.Context[k]; !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range old.Context {
			if _, exists := new.Context[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffHistory assumes History is append-only.
func diffHistory(old, new *Session) []Utterance {
	if len(new.History) == 0 {
		return nil
	}
	if old == nil {
		return new.History
	}
	if len(new.History) > len(old.History) {
		return new.History[len(old.History):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.Status == nil &&
		d.ActiveFlow == nil &&
		len(d.Context) == 0 &&
		len(d.History) == 0
}
