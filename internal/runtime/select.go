package runtime

import (
	"context"

	"github.com/aretw0/railyard/pkg/domain"
)

// selectFlow returns the flow that accepts the turn's intent and the path of the
// step after the accepting expect_user step.
//
// The active flow is resumed when its pending expect_user step names the intent.
// A pending wildcard step yields to any flow that starts with the intent and is
// resumed only when none does. Otherwise the active flow is interrupted. New
// flows are tried literal-first, then wildcard, in declaration order, before
// falling back to the unknown request flow.
func (e *Engine) selectFlow(ctx context.Context, t *turn) (domain.Flow, []int) {
	sess := t.sess
	literal, hasLiteral := e.firstMatch(t.intent, false)

	if cur := sess.Active; cur != nil {
		flow, ok := e.rails.Flow(cur.Flow)
		if ok {
			step, ok := stepAt(flow.Steps, cur.Path)
			if ok && accepts(step, t.intent) && (!step.IsWildcard() || !hasLiteral) {
				sess.Record(domain.TraceFlow, flow.Name, "resume")
				return flow, advance(flow.Steps, cur.Path)
			}
		}
		e.logger.Debug("active flow interrupted", "session_id", sess.ID, "flow", cur.Flow, "intent", t.intent)
		e.endFlow(ctx, sess, "interrupted")
	}

	flow := e.fallback
	if hasLiteral {
		flow = literal
	} else if f, ok := e.firstMatch(t.intent, true); ok {
		flow = f
	}
	e.enter(ctx, sess, flow.Name)
	return flow, advance(flow.Steps, []int{0})
}

func (e *Engine) firstMatch(intent string, wildcard bool) (domain.Flow, bool) {
	for _, f := range e.rails.Flows {
		if f.Name == domain.FallbackFlow || len(f.Steps) == 0 {
			continue
		}
		first := f.Steps[0]
		if first.Kind != domain.StepExpectUser || first.IsWildcard() != wildcard {
			continue
		}
		if wildcard || first.Intent == intent {
			return f, true
		}
	}
	return domain.Flow{}, false
}

func (e *Engine) enter(ctx context.Context, sess *domain.Session, flow string) {
	sess.Active = &domain.Cursor{Flow: flow}
	sess.Status = domain.StatusExecuting
	sess.Record(domain.TraceFlow, flow, "enter")
	e.emitFlow(ctx, e.hooks.OnFlowEnter, domain.EventFlowEnter, sess, flow, "")
}

func accepts(step domain.Step, intent string) bool {
	return step.Kind == domain.StepExpectUser && (step.IsWildcard() || step.Intent == intent)
}
