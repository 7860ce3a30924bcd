package domain

import (
	"maps"
	"slices"
	"time"
)

// Status is the dialog state of a session.
type Status string

const (
	// StatusIdle means no flow has been entered yet.
	StatusIdle Status = "idle"
	// StatusAwaitingUser means the active flow is halted on an expect_user step.
	StatusAwaitingUser Status = "awaiting_user"
	// StatusExecuting means steps are being run within a turn.
	StatusExecuting Status = "executing"
	// StatusAwaitingGuard means a candidate bot message is under output checks.
	StatusAwaitingGuard Status = "awaiting_guard"
	// StatusTerminated means the last flow ended. The next user message starts a new selection.
	StatusTerminated Status = "terminated"
)

// Context variables maintained by the runtime.
const (
	VarLastUserMessage = "last_user_message"
	VarLastBotMessage  = "last_bot_message"
	VarIntent          = "intent"
)

// TraceEntry records a single decision taken while handling a turn.
type TraceEntry struct {
	Turn   int       `json:"turn"`
	Kind   string    `json:"kind"`
	Flow   string    `json:"flow,omitempty"`
	Detail string    `json:"detail"`
	At     time.Time `json:"at"`
}

// Trace entry kinds.
const (
	TraceIntent    = "intent"
	TraceFlow      = "flow"
	TraceGuard     = "guard"
	TraceAction    = "action"
	TraceThink     = "think"
	TraceBranch    = "branch"
	TraceRetrieval = "retrieval"
)

// Session is the mutable state of one conversation.
type Session struct {
	ID        string         `json:"id"`
	Status    Status         `json:"status"`
	Active    *Cursor        `json:"active,omitempty"`
	Context   map[string]any `json:"context"`
	History   []Utterance    `json:"history"`
	Trace     []TraceEntry   `json:"trace,omitempty"`
	Turns     int            `json:"turns"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewSession returns an idle session with empty context and history.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:        id,
		Status:    StatusIdle,
		Context:   make(map[string]any),
		History:   []Utterance{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ActiveFlow returns the name of the flow in progress, or "".
func (s *Session) ActiveFlow() string {
	if s.Active == nil {
		return ""
	}
	return s.Active.Flow
}

// Append adds an utterance to the history, assigning the next ordinal.
func (s *Session) Append(role Role, text string) Utterance {
	u := Utterance{Role: role, Text: text, Ordinal: len(s.History), At: time.Now()}
	s.History = append(s.History, u)
	return u
}

// LastUserMessage returns the text of the most recent user utterance.
func (s *Session) LastUserMessage() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Text
		}
	}
	return ""
}

// Record appends a trace entry for the current turn.
func (s *Session) Record(kind, flow, detail string) {
	s.Trace = append(s.Trace, TraceEntry{
		Turn:   s.Turns,
		Kind:   kind,
		Flow:   flow,
		Detail: detail,
		At:     time.Now(),
	})
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Context = maps.Clone(s.Context)
	if c.Context == nil {
		c.Context = make(map[string]any)
	}
	c.History = slices.Clone(s.History)
	c.Trace = slices.Clone(s.Trace)
	if s.Active != nil {
		cur := Cursor{Flow: s.Active.Flow, Path: slices.Clone(s.Active.Path)}
		c.Active = &cur
	}
	return &c
}
