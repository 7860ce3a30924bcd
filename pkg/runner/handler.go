package runner

import (
	"context"

	"github.com/aretw0/railyard/pkg/domain"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (CLI/TUI) and JSON (Structured) modes.
type IOHandler interface {
	// Output presents the reply of a turn.
	Output(ctx context.Context, reply *domain.Reply) error

	// Input reads the next user message. io.EOF ends the conversation.
	Input(ctx context.Context) (string, error)

	// SystemOutput shows a notice that is not part of the dialog.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms bot text before it is written, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
