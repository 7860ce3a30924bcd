package rails

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/railyard/pkg/domain"
)

// Outcome is the result of running one checkpoint or one guard.
type Outcome struct {
	// Text is the subject after any accepted revision.
	Text    string
	Revised bool

	// Rejected is set when the turn must stop. Message is a bot message label.
	Rejected    bool
	Unavailable bool
	Guard       string
	Reason      string
	Message     string
}

// Option configures an Enforcer.
type Option func(*Enforcer)

// WithGuard registers a host guard under name. It takes precedence over a
// configured guard or built-in kind of the same name.
func WithGuard(name string, g Guard) Option {
	return func(e *Enforcer) { e.guards[name] = g }
}

// WithHooks reports every guard verdict to the OnGuard hook.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(e *Enforcer) { e.hooks = h }
}

// WithLogger sets the logger used for guard decisions.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) { e.logger = l }
}

// Enforcer runs the guards attached to checkpoints and flow check steps.
// It is immutable after construction and safe for concurrent use.
type Enforcer struct {
	rails  *domain.Rails
	guards map[string]Guard
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// NewEnforcer builds every guard referenced by the rails. A name resolves to a
// host guard, then a configured GuardSpec, then a built-in kind with default
// params. Unresolvable names fail with domain.ErrUnknownGuard.
func NewEnforcer(rails *domain.Rails, deps Deps, opts ...Option) (*Enforcer, error) {
	e := &Enforcer{
		rails:  rails,
		guards: make(map[string]Guard),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	if deps.Logger == nil {
		deps.Logger = e.logger
	}

	for _, name := range referencedGuards(rails) {
		if _, ok := e.guards[name]; ok {
			continue
		}
		spec, ok := rails.Guards[name]
		if !ok {
			spec = domain.GuardSpec{Name: name, Kind: name}
		}
		f, ok := factory(spec.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGuard, name)
		}
		g, err := f(spec, deps)
		if err != nil {
			return nil, err
		}
		e.guards[name] = g
	}
	return e, nil
}

// referencedGuards lists configured guards, checkpoint entries and flow check
// steps, each name once.
func referencedGuards(rails *domain.Rails) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if n != "" && !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for name := range rails.Guards {
		add(name)
	}
	for _, cp := range domain.Checkpoints {
		for _, n := range rails.Checkpoints[cp] {
			add(n)
		}
	}
	var walk func([]domain.Step)
	walk = func(steps []domain.Step) {
		for _, s := range steps {
			if s.Kind == domain.StepGuardCheck {
				add(s.Guard)
			}
			walk(s.Then)
			walk(s.Else)
		}
	}
	for _, f := range rails.Flows {
		walk(f.Steps)
	}
	return names
}

// Has reports whether a guard is registered under name.
func (e *Enforcer) Has(name string) bool {
	_, ok := e.guards[name]
	return ok
}

// Guards returns the names attached to a checkpoint in declared order.
func (e *Enforcer) Guards(cp domain.Checkpoint) []string {
	return e.rails.Checkpoints[cp]
}

// Enforce runs the guards of a checkpoint against in.Text. A Revise re-runs
// the checkpoint once on the replacement; anything but a clean pass on the
// second run is a Reject.
func (e *Enforcer) Enforce(ctx context.Context, cp domain.Checkpoint, in Input) Outcome {
	in.Checkpoint = cp
	names := e.rails.Checkpoints[cp]
	if len(names) == 0 {
		return Outcome{Text: in.Text}
	}

	res, guard, err := e.pass(ctx, names, in)
	if err != nil {
		return e.unavailable(in, guard, err)
	}
	switch res.Verdict {
	case domain.VerdictPass:
		return Outcome{Text: in.Text}
	case domain.VerdictReject:
		return e.reject(in, guard, res.Reason)
	}

	revised := in
	revised.Text = res.Replacement
	res, guard2, err := e.pass(ctx, names, revised)
	if err != nil {
		return e.unavailable(in, guard2, err)
	}
	if res.Verdict != domain.VerdictPass {
		reason := res.Reason
		if res.Verdict == domain.VerdictRevise {
			reason = "revision did not converge"
		}
		return e.reject(in, guard2, reason)
	}
	e.logger.Debug("subject revised", "session_id", in.SessionID, "checkpoint", cp, "guard", guard)
	return Outcome{Text: revised.Text, Revised: true, Guard: guard}
}

// Check runs a single guard for a flow check step. A check step cannot
// substitute text, so Revise is treated as Reject.
func (e *Enforcer) Check(ctx context.Context, name string, in Input) Outcome {
	in.Checkpoint = domain.CheckpointDialog
	res, _, err := e.pass(ctx, []string{name}, in)
	if err != nil {
		return e.unavailable(in, name, err)
	}
	switch res.Verdict {
	case domain.VerdictPass:
		return Outcome{Text: in.Text}
	case domain.VerdictRevise:
		return e.reject(in, name, "revision requested by check step")
	}
	return e.reject(in, name, res.Reason)
}

func (e *Enforcer) pass(ctx context.Context, names []string, in Input) (domain.GuardResult, string, error) {
	for _, name := range names {
		g, ok := e.guards[name]
		if !ok {
			return domain.GuardResult{}, name, fmt.Errorf("%w: %q", domain.ErrUnknownGuard, name)
		}
		if err := ctx.Err(); err != nil {
			return domain.GuardResult{}, name, err
		}
		res, err := g.Check(ctx, in)
		if err == nil && res.Verdict == "" {
			res.Verdict = domain.VerdictPass
		}
		e.emit(ctx, in, name, res, err)
		if err != nil {
			return domain.GuardResult{}, name, err
		}
		if res.Verdict != domain.VerdictPass {
			return res, name, nil
		}
	}
	return domain.Pass(), "", nil
}

func (e *Enforcer) emit(ctx context.Context, in Input, name string, res domain.GuardResult, err error) {
	if e.hooks.OnGuard == nil {
		return
	}
	ev := &domain.GuardEvent{
		EventBase: domain.EventBase{
			Timestamp: time.Now(),
			Type:      domain.EventGuardCheck,
			SessionID: in.SessionID,
		},
		Checkpoint: in.Checkpoint,
		Guard:      name,
		Verdict:    res.Verdict,
		Reason:     res.Reason,
	}
	if err != nil {
		ev.Verdict = domain.VerdictReject
		ev.Reason = err.Error()
	}
	e.hooks.OnGuard(ctx, ev)
}

func (e *Enforcer) reject(in Input, guard, reason string) Outcome {
	e.logger.Info("guard rejected",
		"session_id", in.SessionID, "checkpoint", in.Checkpoint, "guard", guard, "reason", reason)
	msg := e.rails.RejectMessage
	if spec, ok := e.rails.Guards[guard]; ok && spec.Message != "" {
		msg = spec.Message
	}
	return Outcome{Text: in.Text, Rejected: true, Guard: guard, Reason: reason, Message: msg}
}

func (e *Enforcer) unavailable(in Input, guard string, err error) Outcome {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelDebug
	}
	e.logger.Log(context.Background(), level, "guard failed",
		"session_id", in.SessionID, "checkpoint", in.Checkpoint, "guard", guard, "error", err)
	return Outcome{
		Text:        in.Text,
		Rejected:    true,
		Unavailable: true,
		Guard:       guard,
		Reason:      err.Error(),
		Message:     e.rails.UnavailableMessage,
	}
}
