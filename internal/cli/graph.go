package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/internal/logging"
	"github.com/aretw0/railyard/internal/presentation/graph"
	"github.com/aretw0/railyard/pkg/domain"
)

// GraphOptions configures the Mermaid export.
type GraphOptions struct {
	Options
	// SessionID highlights the flows visited by a stored session.
	SessionID string
}

// RunGraph writes the flows as a Mermaid flowchart to w.
func RunGraph(ctx context.Context, opts GraphOptions, w io.Writer) error {
	actions, err := loadActions(opts.Options)
	if err != nil {
		return err
	}

	var (
		rails   *domain.Rails
		overlay *graph.Overlay
	)
	if opts.SessionID == "" {
		report, err := railyard.Check(opts.Dir,
			railyard.WithActions(actions),
			railyard.WithLogger(logging.NewNop()),
		)
		if err != nil {
			return err
		}
		rails = report.Rails
	} else {
		eng, err := railyard.New(opts.Dir,
			railyard.WithActions(actions),
			railyard.WithLogger(logging.NewNop()),
		)
		if err != nil {
			return err
		}
		defer eng.Close()

		sess, err := eng.Session(ctx, opts.SessionID)
		if err != nil {
			return fmt.Errorf("session %s: %w", opts.SessionID, err)
		}
		rails = eng.Rails()
		overlay = graph.OverlayFromSession(sess)
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(rails, overlay))
	return err
}
