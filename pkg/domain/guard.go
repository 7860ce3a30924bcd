package domain

// Checkpoint identifies where in the turn pipeline a rail runs.
type Checkpoint string

const (
	CheckpointInput     Checkpoint = "input"
	CheckpointRetrieval Checkpoint = "retrieval"
	CheckpointOutput    Checkpoint = "output"
	// CheckpointDialog is used for guard_check steps declared inside flows.
	CheckpointDialog Checkpoint = "dialog"
)

// Checkpoints lists the configurable checkpoints in pipeline order.
var Checkpoints = []Checkpoint{CheckpointInput, CheckpointRetrieval, CheckpointOutput}

// Verdict is the tag of a GuardResult.
type Verdict string

const (
	VerdictPass   Verdict = "pass"
	VerdictReject Verdict = "reject"
	VerdictRevise Verdict = "revise"
)

// GuardResult is the outcome of a single guard check. It is consumed immediately
// by the rail enforcer and never persisted.
type GuardResult struct {
	Verdict     Verdict
	Reason      string
	Replacement string
}

// Pass lets the subject through unchanged.
func Pass() GuardResult {
	return GuardResult{Verdict: VerdictPass}
}

// Reject stops the turn. The reason is for logs and traces only.
func Reject(reason string) GuardResult {
	return GuardResult{Verdict: VerdictReject, Reason: reason}
}

// Revise replaces the subject with the given text.
func Revise(replacement string) GuardResult {
	return GuardResult{Verdict: VerdictRevise, Replacement: replacement}
}

// GuardSpec is a named guard definition from the rails configuration.
type GuardSpec struct {
	Name    string         `json:"name" yaml:"name"`
	Kind    string         `json:"kind" yaml:"kind"`
	Message string         `json:"message,omitempty" yaml:"message,omitempty"`
	Params  map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}
