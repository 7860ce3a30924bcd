// Package runtime executes dialog turns: it resolves the user's canonical intent,
// selects or resumes a flow and interprets its steps until the flow halts on the
// next user step, stops, or a rail rejects the turn.
//
// The engine mutates the session it is given. Callers serialise turns per
// session and persist the result.
package runtime
