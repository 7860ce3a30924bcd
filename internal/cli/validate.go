package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/railyard"
	"github.com/aretw0/railyard/internal/logging"
)

// ErrInvalid is returned by RunValidate after the problems were printed.
var ErrInvalid = errors.New("rails are invalid")

// RunValidate compiles and validates the rails without contacting any model
// provider or store, printing problems and warnings to w.
func RunValidate(opts Options, w io.Writer) error {
	actions, err := loadActions(opts)
	if err != nil {
		return err
	}
	report, err := railyard.Check(opts.Dir,
		railyard.WithActions(actions),
		railyard.WithLogger(logging.NewNop()),
	)

	var cle *railyard.ConfigLoadError
	if errors.As(err, &cle) {
		fmt.Fprintf(w, "%s:\n", cle.Source)
		for _, p := range cle.Problems() {
			fmt.Fprintf(w, "  error: %s\n", p)
		}
		return ErrInvalid
	}
	if err != nil {
		return err
	}

	for _, warning := range report.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	fmt.Fprintf(w, "Rails are valid: %d intents, %d flows, %d guards.\n",
		len(report.Rails.Intents), len(report.Rails.Flows), len(report.Rails.Guards))
	return nil
}
