/*
Package domain contains the core domain models of the Railyard guarded-dialog engine.

It defines the immutable rail set (intents, bot messages, flows, guard configuration),
the per-session conversation state, and the tagged guard outcomes consumed by the rail
enforcer. This package is kept pure and free of I/O, following Hexagonal Architecture
principles: adapters and the runtime depend on it, never the other way around.

# Key Entities

  - CanonicalIntent: a label plus example utterances used for similarity matching.
  - Flow / Step: an ordered script of expected user turns, bot messages, guard checks and actions.
  - Session: one conversation's Context, active flow cursor, history and trace.
  - GuardResult: Pass, Reject(reason) or Revise(replacement), produced by a guard check.
  - Reply: the outcome of a user turn, either a BotResponse or a GuardRejection.
*/
package domain
