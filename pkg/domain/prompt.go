package domain

// Prompt is a provider-agnostic chat completion request.
type Prompt struct {
	System string      `json:"system,omitempty"`
	Turns  []Utterance `json:"turns"`
}

// UserPrompt builds a prompt with a system message and a single user turn.
func UserPrompt(system, user string) Prompt {
	return Prompt{
		System: system,
		Turns:  []Utterance{{Role: RoleUser, Text: user}},
	}
}
