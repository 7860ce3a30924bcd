package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/railyard/internal/logging"
)

// SessionCommand selects what RunSessions does.
type SessionCommand string

const (
	SessionList SessionCommand = "list"
	SessionShow SessionCommand = "show"
	SessionEnd  SessionCommand = "end"
)

// RunSessions inspects the sessions of the configured store. It is mostly
// useful with the Redis store, which outlives the process.
func RunSessions(ctx context.Context, opts Options, cmd SessionCommand, id string, w io.Writer) error {
	eng, err := createEngine(opts, logging.NewNop(), nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	switch cmd {
	case SessionList:
		ids, err := eng.Sessions(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintln(w, id)
		}
		return nil
	case SessionShow:
		sess, err := eng.Session(ctx, id)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	case SessionEnd:
		if err := eng.EndSession(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(w, "Session '%s' ended.\n", id)
		return nil
	}
	return fmt.Errorf("unknown session command %q", cmd)
}
