package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
)

// Chat is the session API the runner drives.
type Chat interface {
	SubmitUserMessage(ctx context.Context, sessionID, text string) (*domain.Reply, error)
}

// DefaultExitWords end the conversation when typed on their own.
var DefaultExitWords = []string{"exit", "quit", "q"}

// Runner handles the chat loop of a session using the provided IO.
// This allows for easy testing and integration with different frontends (CLI, TUI, etc).
type Runner struct {
	Handler   IOHandler
	Logger    *slog.Logger
	ExitWords []string
	Sanitizer Sanitizer
}

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithHandler configures a custom IOHandler.
func WithHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithExitWords replaces the words that end the conversation.
func WithExitWords(words ...string) Option {
	return func(r *Runner) {
		r.ExitWords = words
	}
}

// WithSanitizer sets how messages are cleaned before they are submitted.
func WithSanitizer(s Sanitizer) Option {
	return func(r *Runner) {
		r.Sanitizer = s
	}
}

// New creates a Runner reading from Stdin and writing to Stdout by default.
func New(opts ...Option) *Runner {
	r := &Runner{
		ExitWords: DefaultExitWords,
		Logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run reads user messages until an exit word, end of input or ctx cancellation,
// submitting each one as a turn of sessionID. Invalid messages are reported to
// the user and the loop continues.
func (r *Runner) Run(ctx context.Context, chat Chat, sessionID string) error {
	for {
		text, err := r.Handler.Input(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if text == "" {
			continue
		}
		if slices.Contains(r.ExitWords, strings.ToLower(text)) {
			return nil
		}

		clean, err := r.Sanitizer.Clean(text)
		if err != nil {
			r.notify(ctx, "Your message could not be sent: "+err.Error())
			continue
		}

		reply, err := chat.SubmitUserMessage(ctx, sessionID, clean)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case errors.Is(err, domain.ErrInvalidInput):
			r.notify(ctx, "Your message could not be sent: "+err.Error())
			continue
		case err != nil:
			return err
		}

		if reply.Rejected() {
			r.Logger.Debug("turn rejected", "session_id", sessionID, "checkpoint", reply.Rejection.Checkpoint)
		}
		if err := r.Handler.Output(ctx, reply); err != nil {
			return err
		}
	}
}

func (r *Runner) notify(ctx context.Context, msg string) {
	if err := r.Handler.SystemOutput(ctx, msg); err != nil {
		r.Logger.Warn("failed to write system output", "err", err)
	}
}
