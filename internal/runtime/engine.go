package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/railyard/internal/matcher"
	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/ports"
	"github.com/aretw0/railyard/pkg/rails"
)

// IntentMatcher resolves an utterance to a canonical intent.
type IntentMatcher interface {
	Match(ctx context.Context, text string) (matcher.Match, error)
}

// Actions executes the named actions of execute steps.
type Actions interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Engine interprets flows for one rail snapshot. It holds no session state and is
// safe for concurrent use across sessions.
type Engine struct {
	rails     *domain.Rails
	matcher   IntentMatcher
	enforcer  *rails.Enforcer
	completer ports.Completer
	retriever ports.Retriever
	actions   Actions
	hooks     domain.LifecycleHooks
	logger    *slog.Logger
	fallback  domain.Flow
}

// Option configures the Engine.
type Option func(*Engine)

// WithCompleter sets the model used for generated (bot ...) answers.
func WithCompleter(c ports.Completer) Option {
	return func(e *Engine) { e.completer = c }
}

// WithRetriever attaches a knowledge base to generated answers.
func WithRetriever(r ports.Retriever) Option {
	return func(e *Engine) { e.retriever = r }
}

// WithActions sets the registry used by execute steps.
func WithActions(a Actions) Option {
	return func(e *Engine) { e.actions = a }
}

// WithLifecycleHooks registers callbacks for engine events.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) { e.hooks = hooks }
}

// WithLogger sets a custom logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine over an immutable rail set.
func New(r *domain.Rails, m IntentMatcher, enf *rails.Enforcer, opts ...Option) *Engine {
	e := &Engine{
		rails:    r,
		matcher:  m,
		enforcer: enf,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "runtime")
	if f, ok := r.Flow(domain.FallbackFlow); ok {
		e.fallback = f
	} else {
		e.fallback = domain.FallbackFlowDef()
	}
	return e
}

// Rails returns the rail set the engine runs.
func (e *Engine) Rails() *domain.Rails {
	return e.rails
}

// turn carries the per-turn state while steps execute.
type turn struct {
	sess     *domain.Session
	text     string
	intent   string
	flow     string
	messages []string
	outcome  string
}

// Turn handles one user message. It returns an error only when ctx was cancelled
// by the caller; provider failures and deadlines become a rejection in the reply.
func (e *Engine) Turn(ctx context.Context, sess *domain.Session, text string) (*domain.Reply, error) {
	start := time.Now()
	sess.Turns++
	sess.Status = domain.StatusExecuting
	e.emitTurn(ctx, e.hooks.OnTurnStart, domain.EventTurnStart, sess, "", 0)

	t := &turn{sess: sess, text: text, outcome: domain.OutcomeResponse}
	reply, err := e.run(ctx, t)
	if err != nil {
		t.outcome = domain.OutcomeError
	}
	e.emitTurn(ctx, e.hooks.OnTurnEnd, domain.EventTurnEnd, sess, t.outcome, time.Since(start))
	return reply, err
}

func (e *Engine) run(ctx context.Context, t *turn) (*domain.Reply, error) {
	sess := t.sess
	u := sess.Append(domain.RoleUser, t.text)

	in := e.enforcer.Enforce(ctx, domain.CheckpointInput, e.input(t, t.text))
	if in.Rejected {
		return e.rejected(ctx, t, domain.CheckpointInput, in)
	}
	if in.Revised {
		t.text = in.Text
		sess.History[u.Ordinal].Text = in.Text
	}
	sess.Context[domain.VarLastUserMessage] = t.text

	m, err := e.matcher.Match(ctx, t.text)
	if err != nil {
		return e.failed(ctx, t, domain.CheckpointInput, fmt.Errorf("matching intent: %w", err))
	}
	t.intent = m.Intent
	sess.Context[domain.VarIntent] = m.Intent
	sess.Record(domain.TraceIntent, "", fmt.Sprintf("%s (score %.3f)", m.Intent, m.Score))
	if e.hooks.OnIntentResolved != nil {
		e.hooks.OnIntentResolved(ctx, &domain.IntentEvent{
			EventBase: e.base(domain.EventIntent, sess),
			Intent:    m.Intent,
			Score:     m.Score,
			Exact:     m.Exact,
		})
	}
	e.logger.Debug("intent resolved", "session_id", sess.ID, "intent", m.Intent, "score", m.Score, "exact", m.Exact)

	flow, path := e.selectFlow(ctx, t)
	t.flow = flow.Name
	return e.execute(ctx, t, flow, path)
}

func (e *Engine) input(t *turn, text string) rails.Input {
	return rails.Input{
		SessionID:   t.sess.ID,
		Text:        text,
		UserMessage: t.text,
		Context:     t.sess.Context,
	}
}

// rejected ends the active flow and answers with the rejection message.
func (e *Engine) rejected(ctx context.Context, t *turn, cp domain.Checkpoint, out rails.Outcome) (*domain.Reply, error) {
	if out.Unavailable && errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	fallback := domain.DefaultRejectText
	t.outcome = domain.OutcomeRejected
	if out.Unavailable {
		fallback = domain.DefaultUnavailableText
		t.outcome = domain.OutcomeUnavailable
	}
	msg := e.render(t.sess, out.Message, fallback)

	t.sess.Record(domain.TraceGuard, t.flow, fmt.Sprintf("%s rejected by %s: %s", cp, out.Guard, out.Reason))
	e.endFlow(ctx, t.sess, "rejected")
	t.sess.Append(domain.RoleBot, msg)
	t.sess.Context[domain.VarLastBotMessage] = msg

	return &domain.Reply{
		SessionID: t.sess.ID,
		Status:    t.sess.Status,
		Rejection: &domain.GuardRejection{Checkpoint: cp, Guard: out.Guard, Messages: t.messages, Message: msg},
	}, nil
}

// failed turns a provider or action failure into a service-unavailable rejection.
func (e *Engine) failed(ctx context.Context, t *turn, cp domain.Checkpoint, err error) (*domain.Reply, error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil, ctx.Err()
	}
	e.logger.Warn("turn failed", "session_id", t.sess.ID, "checkpoint", cp, "flow", t.flow, "error", err)
	return e.rejected(ctx, t, cp, rails.Outcome{
		Rejected:    true,
		Unavailable: true,
		Reason:      err.Error(),
		Message:     e.rails.UnavailableMessage,
	})
}

func (e *Engine) endFlow(ctx context.Context, sess *domain.Session, reason string) {
	if sess.Active != nil {
		e.emitFlow(ctx, e.hooks.OnFlowExit, domain.EventFlowExit, sess, sess.Active.Flow, reason)
		sess.Record(domain.TraceFlow, sess.Active.Flow, "exit: "+reason)
	}
	sess.Active = nil
	sess.Status = domain.StatusTerminated
}

func (e *Engine) base(typ domain.EventType, sess *domain.Session) domain.EventBase {
	return domain.EventBase{Timestamp: time.Now(), Type: typ, SessionID: sess.ID}
}

func (e *Engine) emitTurn(ctx context.Context, fn func(context.Context, *domain.TurnEvent), typ domain.EventType, sess *domain.Session, outcome string, d time.Duration) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.TurnEvent{EventBase: e.base(typ, sess), Turn: sess.Turns, Outcome: outcome, Duration: d})
}

func (e *Engine) emitFlow(ctx context.Context, fn func(context.Context, *domain.FlowEvent), typ domain.EventType, sess *domain.Session, flow, reason string) {
	if fn == nil {
		return
	}
	fn(ctx, &domain.FlowEvent{EventBase: e.base(typ, sess), Flow: flow, Reason: reason})
}
