package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrServiceUnavailable wraps embedding, completion and retrieval failures, and turn deadlines.
// It is never shown to the end user; the runtime turns it into a Reject.
var ErrServiceUnavailable = errors.New("service unavailable")

// ErrInvalidInput is returned for user messages that are too large or not valid UTF-8.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnknownGuard is returned when a checkpoint or flow references an unregistered guard.
var ErrUnknownGuard = errors.New("unknown guard")

// ErrUnknownAction is returned when a flow executes an unregistered action.
var ErrUnknownAction = errors.New("unknown action")

// ErrNoKnowledge is returned by retrieval when no documents were indexed.
var ErrNoKnowledge = errors.New("knowledge base is empty")
