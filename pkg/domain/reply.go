package domain

import "strings"

// BotResponse is the successful outcome of a turn.
type BotResponse struct {
	Intent   string   `json:"intent"`
	Flow     string   `json:"flow"`
	Messages []string `json:"messages"`
}

// GuardRejection is returned when a rail rejected the turn. Message is the
// author-defined safe text; the reason is never exposed. Messages holds the bot
// messages that cleared the output checkpoint earlier in the same turn.
//
// Guard names the rejecting guard for in-process callers and is left out of
// the wire format.
type GuardRejection struct {
	Checkpoint Checkpoint `json:"checkpoint"`
	Guard      string     `json:"-"`
	Messages   []string   `json:"messages,omitempty"`
	Message    string     `json:"message"`
}

// Output returns the messages the user sees, ending with the rejection message.
func (g *GuardRejection) Output() []string {
	out := make([]string, 0, len(g.Messages)+1)
	out = append(out, g.Messages...)
	return append(out, g.Message)
}

// Reply is the result of SubmitUserMessage. Exactly one of Response and Rejection is set.
type Reply struct {
	SessionID string          `json:"session_id"`
	Status    Status          `json:"status"`
	Response  *BotResponse    `json:"response,omitempty"`
	Rejection *GuardRejection `json:"rejection,omitempty"`
}

// Rejected reports whether the turn was stopped by a rail.
func (r *Reply) Rejected() bool {
	return r != nil && r.Rejection != nil
}

// Text joins the user-visible output of the turn.
func (r *Reply) Text() string {
	switch {
	case r == nil:
		return ""
	case r.Rejection != nil:
		return strings.Join(r.Rejection.Output(), "\n")
	case r.Response != nil:
		return strings.Join(r.Response.Messages, "\n")
	}
	return ""
}
