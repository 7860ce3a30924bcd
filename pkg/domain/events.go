package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventTurnStart  EventType = "turn_start"
	EventTurnEnd    EventType = "turn_end"
	EventIntent     EventType = "intent_resolved"
	EventFlowEnter  EventType = "flow_enter"
	EventFlowExit   EventType = "flow_exit"
	EventGuardCheck EventType = "guard_check"
)

// Turn outcomes reported in TurnEvent.Outcome.
const (
	OutcomeResponse    = "response"
	OutcomeRejected    = "rejected"
	OutcomeUnavailable = "unavailable"
	OutcomeError       = "error"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// TurnEvent marks the start or end of a user turn.
type TurnEvent struct {
	EventBase
	Turn     int           `json:"turn"`
	Outcome  string        `json:"outcome,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// IntentEvent reports the result of canonical form matching.
type IntentEvent struct {
	EventBase
	Intent string  `json:"intent"`
	Score  float64 `json:"score"`
	Exact  bool    `json:"exact,omitempty"`
}

// FlowEvent represents entry into or exit from a flow.
type FlowEvent struct {
	EventBase
	Flow   string `json:"flow"`
	Reason string `json:"reason,omitempty"`
}

// GuardEvent records a single guard verdict.
type GuardEvent struct {
	EventBase
	Checkpoint Checkpoint `json:"checkpoint"`
	Guard      string     `json:"guard"`
	Verdict    Verdict    `json:"verdict"`
	Reason     string     `json:"reason,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnTurnStart      func(context.Context, *TurnEvent)
	OnTurnEnd        func(context.Context, *TurnEvent)
	OnIntentResolved func(context.Context, *IntentEvent)
	OnFlowEnter      func(context.Context, *FlowEvent)
	OnFlowExit       func(context.Context, *FlowEvent)
	OnGuard          func(context.Context, *GuardEvent)
}

// Merge returns hooks that call h first and then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnTurnStart:      chain(h.OnTurnStart, other.OnTurnStart),
		OnTurnEnd:        chain(h.OnTurnEnd, other.OnTurnEnd),
		OnIntentResolved: chain(h.OnIntentResolved, other.OnIntentResolved),
		OnFlowEnter:      chain(h.OnFlowEnter, other.OnFlowEnter),
		OnFlowExit:       chain(h.OnFlowExit, other.OnFlowExit),
		OnGuard:          chain(h.OnGuard, other.OnGuard),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
