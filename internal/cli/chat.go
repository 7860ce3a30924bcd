package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/internal/presentation/tui"
	"github.com/aretw0/railyard/pkg/runner"
)

// ChatOptions configures an interactive session.
type ChatOptions struct {
	Options
	// JSON switches to NDJSON input and output.
	JSON bool
	// Watch reloads the rails when their files change.
	Watch bool

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// RunChat starts a session and chats on the terminal until an exit word,
// end of input or ctx cancellation. The session is ended on return.
func RunChat(ctx context.Context, opts ChatOptions) error {
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	// Keep the conversation readable unless logs were asked for.
	if opts.LogLevel == "" && !opts.Debug {
		opts.LogLevel = "warn"
	}

	logger, err := createLogger(opts.Options, opts.Stderr)
	if err != nil {
		return err
	}
	eng, err := createEngine(opts.Options, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(opts.Stdin, opts.Stdout)
	} else {
		tui.PrintBanner(opts.Stdout, railyard.Version, eng.Name)
		handler = runner.NewTextHandler(opts.Stdin, opts.Stdout,
			runner.WithTextHandlerRenderer(tui.NewRenderer()),
		)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id, err := eng.StartSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := eng.EndSession(context.WithoutCancel(ctx), id); err != nil {
			logger.Warn("failed to end session", "session_id", id, "err", err)
		}
	}()
	logger.Info("session started", "session_id", id)

	if opts.Watch {
		events, err := eng.Watch(ctx)
		if err != nil {
			return err
		}
		go func() {
			for err := range events {
				msg := "Rails reloaded."
				if err != nil {
					msg = "Reload failed, previous rails kept: " + err.Error()
				}
				_ = handler.SystemOutput(ctx, msg)
			}
		}()
	}

	sc := eng.Config().Session
	r := runner.New(
		runner.WithHandler(handler),
		runner.WithLogger(logger),
		runner.WithSanitizer(runner.Sanitizer{MaxSize: sc.MaxInputSize, KeepFormatChars: sc.KeepFormatChars}),
	)
	return r.Run(ctx, eng, id)
}
