package domain

import "slices"

// Built-in texts used when the rails do not define their own.
const (
	DefaultFallbackText    = "I'm not sure how to help with that specific query. Could you rephrase it or ask something else?"
	DefaultRejectText      = "I'm sorry, I can't respond to that."
	DefaultUnavailableText = "I'm sorry, I can't answer right now. Please try again in a moment."
)

// MatcherParams configures canonical form matching.
type MatcherParams struct {
	Threshold float64 `json:"threshold" yaml:"threshold"`
	TopK      int     `json:"top_k" yaml:"top_k"`
}

// CompletionParams tunes a single completion request.
type CompletionParams struct {
	Model       string  `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// Rails is the immutable rail set loaded at startup. It is shared read-only by all sessions.
type Rails struct {
	Intents  []CanonicalIntent   `json:"intents"`
	Messages map[string][]string `json:"messages"`
	Flows    []Flow              `json:"flows"`

	Guards      map[string]GuardSpec    `json:"guards,omitempty"`
	Checkpoints map[Checkpoint][]string `json:"checkpoints,omitempty"`

	// RejectMessage and UnavailableMessage are bot message labels.
	RejectMessage      string `json:"reject_message,omitempty"`
	UnavailableMessage string `json:"unavailable_message,omitempty"`

	Instructions string           `json:"instructions,omitempty"`
	Matcher      MatcherParams    `json:"matcher"`
	Generation   CompletionParams `json:"generation"`

	// Source is the directory the rails were loaded from.
	Source string `json:"source,omitempty"`
}

// Flow returns the flow with the given name.
func (r *Rails) Flow(name string) (Flow, bool) {
	i := slices.IndexFunc(r.Flows, func(f Flow) bool { return f.Name == name })
	if i < 0 {
		return Flow{}, false
	}
	return r.Flows[i], true
}

// Intent returns the canonical intent with the given label.
func (r *Rails) Intent(label string) (CanonicalIntent, bool) {
	i := slices.IndexFunc(r.Intents, func(c CanonicalIntent) bool { return c.Label == label })
	if i < 0 {
		return CanonicalIntent{}, false
	}
	return r.Intents[i], true
}

// Templates returns the bot message templates registered under label, falling
// back to the built-in text for the well-known labels.
func (r *Rails) Templates(label string) []string {
	if t := r.Messages[label]; len(t) > 0 {
		return t
	}
	switch {
	case label == FallbackMessage:
		return []string{DefaultFallbackText}
	case label != "" && label == r.RejectMessage:
		return []string{DefaultRejectText}
	case label != "" && label == r.UnavailableMessage:
		return []string{DefaultUnavailableText}
	}
	return nil
}

// FallbackFlowDef is the built-in flow selected when no other flow accepts the intent.
func FallbackFlowDef() Flow {
	return Flow{
		Name: FallbackFlow,
		Steps: []Step{
			{Kind: StepExpectUser, Intent: UnknownIntent},
			{Kind: StepBotMessage, Message: FallbackMessage},
		},
	}
}
