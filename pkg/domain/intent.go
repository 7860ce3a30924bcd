package domain

const (
	// UnknownIntent is resolved when no example clears the similarity threshold.
	UnknownIntent = "unknown"

	// Wildcard matches any user utterance in an expect_user step, and requests a
	// generated answer in a bot_message step.
	Wildcard = "..."
)

// CanonicalIntent is a normalized label together with the examples used to recognise it.
type CanonicalIntent struct {
	Label    string   `json:"label" yaml:"label"`
	Examples []string `json:"examples" yaml:"examples"`
}
