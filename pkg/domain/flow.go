package domain

// StepKind tags the variant held by a Step.
type StepKind string

const (
	// StepExpectUser halts the flow until the user expresses Intent (or anything, for Wildcard).
	StepExpectUser StepKind = "expect_user"
	// StepBotMessage emits the message registered under Message, or a generated answer for Wildcard.
	StepBotMessage StepKind = "bot_message"
	// StepGuardCheck runs the named guard against the latest user utterance.
	StepGuardCheck StepKind = "guard_check"
	// StepAction executes a registered action, optionally saving its result into Context.
	StepAction StepKind = "action"
	// StepBranch picks Then or Else depending on Condition.
	StepBranch StepKind = "branch"
	// StepThink appends a trace entry. It never alters control flow or Context.
	StepThink StepKind = "think"
	// StepStop ends the flow.
	StepStop StepKind = "stop"
)

// FallbackFlow is the name of the built-in flow used when nothing else matches.
const FallbackFlow = "unknown request"

// FallbackMessage is the bot message label emitted by the fallback flow.
const FallbackMessage = "inform unknown request"

// Flow is an immutable template of steps loaded at startup.
type Flow struct {
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// Step is a tagged variant. Only the fields relevant to Kind are set.
type Step struct {
	Kind StepKind `json:"kind"`

	Intent    string     `json:"intent,omitempty"`    // StepExpectUser
	Message   string     `json:"message,omitempty"`   // StepBotMessage
	Guard     string     `json:"guard,omitempty"`     // StepGuardCheck
	Action    string     `json:"action,omitempty"`    // StepAction
	SaveAs    string     `json:"save_as,omitempty"`   // StepAction
	Text      string     `json:"text,omitempty"`      // StepThink
	Condition *Condition `json:"condition,omitempty"` // StepBranch
	Then      []Step     `json:"then,omitempty"`      // StepBranch
	Else      []Step     `json:"else,omitempty"`      // StepBranch

	Line int `json:"line,omitempty"`
}

// IsWildcard reports whether an expect_user step accepts any utterance.
func (s Step) IsWildcard() bool {
	return s.Kind == StepExpectUser && s.Intent == Wildcard
}

// Condition is a comparison over a single Context variable.
// With an empty Op it tests the variable for truthiness.
type Condition struct {
	Var    string `json:"var"`
	Op     string `json:"op,omitempty"`
	Value  any    `json:"value,omitempty"`
	Negate bool   `json:"negate,omitempty"`
	Source string `json:"source,omitempty"`
}

// Cursor points at the next step to execute within the active flow.
// Path addresses nested step lists: [index, arm, index, arm, index ...],
// where arm is 0 for Then and 1 for Else.
type Cursor struct {
	Flow string `json:"flow"`
	Path []int  `json:"path"`
}
