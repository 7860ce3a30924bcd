package runtime

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
)

// execute runs the flow from path until it halts on an expect_user step,
// stops, completes, or is rejected.
func (e *Engine) execute(ctx context.Context, t *turn, flow domain.Flow, path []int) (*domain.Reply, error) {
	sess := t.sess
	for path != nil {
		step, _ := stepAt(flow.Steps, path)
		switch step.Kind {
		case domain.StepExpectUser:
			sess.Active = &domain.Cursor{Flow: flow.Name, Path: path}
			sess.Status = domain.StatusAwaitingUser
			return e.respond(t), nil

		case domain.StepBotMessage:
			var text string
			if step.Message == domain.Wildcard {
				answer, reply, err := e.generate(ctx, t)
				if reply != nil || err != nil {
					return reply, err
				}
				text = answer
			} else {
				text = e.render(sess, step.Message, step.Message)
			}
			if reply, err := e.say(ctx, t, text); reply != nil || err != nil {
				return reply, err
			}

		case domain.StepGuardCheck:
			out := e.enforcer.Check(ctx, step.Guard, e.input(t, t.text))
			if out.Rejected {
				return e.rejected(ctx, t, domain.CheckpointDialog, out)
			}
			sess.Record(domain.TraceGuard, flow.Name, step.Guard+" passed")

		case domain.StepAction:
			if e.actions == nil {
				return e.failed(ctx, t, domain.CheckpointDialog, fmt.Errorf("%w: %s", domain.ErrUnknownAction, step.Action))
			}
			res, err := e.actions.Execute(ctx, step.Action, maps.Clone(sess.Context))
			if err != nil {
				return e.failed(ctx, t, domain.CheckpointDialog, fmt.Errorf("action %s: %w", step.Action, err))
			}
			if step.SaveAs != "" {
				sess.Context[step.SaveAs] = res
			}
			sess.Record(domain.TraceAction, flow.Name, step.Action)

		case domain.StepBranch:
			ok := evaluate(step.Condition, sess.Context)
			arm := armThen
			if !ok {
				arm = armElse
			}
			sess.Record(domain.TraceBranch, flow.Name, fmt.Sprintf("%s: %t", step.Condition.Source, ok))
			path = enterArm(flow.Steps, path, arm)
			continue

		case domain.StepThink:
			sess.Record(domain.TraceThink, flow.Name, interpolate(step.Text, sess.Context))

		case domain.StepStop:
			e.endFlow(ctx, sess, "stopped")
			return e.respond(t), nil
		}
		path = advance(flow.Steps, path)
	}
	e.endFlow(ctx, sess, "completed")
	return e.respond(t), nil
}

// say passes a candidate bot message through the output checkpoint and emits it.
// It returns a reply only when the message was rejected.
func (e *Engine) say(ctx context.Context, t *turn, text string) (*domain.Reply, error) {
	t.sess.Status = domain.StatusAwaitingGuard
	out := e.enforcer.Enforce(ctx, domain.CheckpointOutput, e.input(t, text))
	if out.Rejected {
		return e.rejected(ctx, t, domain.CheckpointOutput, out)
	}
	t.sess.Status = domain.StatusExecuting

	t.messages = append(t.messages, out.Text)
	t.sess.Append(domain.RoleBot, out.Text)
	t.sess.Context[domain.VarLastBotMessage] = out.Text
	return nil, nil
}

func (e *Engine) respond(t *turn) *domain.Reply {
	msgs := t.messages
	if msgs == nil {
		msgs = []string{}
	}
	return &domain.Reply{
		SessionID: t.sess.ID,
		Status:    t.sess.Status,
		Response:  &domain.BotResponse{Intent: t.intent, Flow: t.flow, Messages: msgs},
	}
}

// ContextInstruction follows the retrieved context in the system prompt.
const ContextInstruction = "Respond based on the context provided. If the information isn't in the context, say so."

// ContextPrompt builds the system prompt for an answer grounded on retrieved context.
func ContextPrompt(instructions, context string) string {
	p := "Context: " + context + "\n\n" + ContextInstruction
	if instructions != "" {
		p = instructions + "\n\n" + p
	}
	return p
}

// generate answers the user with the completion model, grounded on the
// knowledge base when one is attached. It returns a reply only on rejection.
func (e *Engine) generate(ctx context.Context, t *turn) (string, *domain.Reply, error) {
	if e.completer == nil {
		reply, err := e.failed(ctx, t, domain.CheckpointOutput, errors.New("no completion model configured"))
		return "", reply, err
	}

	system := e.rails.Instructions
	if e.retriever != nil {
		chunks, err := e.retriever.Retrieve(ctx, t.text)
		switch {
		case errors.Is(err, domain.ErrNoKnowledge):
		case err != nil:
			reply, err := e.failed(ctx, t, domain.CheckpointRetrieval, fmt.Errorf("retrieving context: %w", err))
			return "", reply, err
		default:
			in := e.input(t, joinChunks(chunks))
			in.Chunks = chunks
			out := e.enforcer.Enforce(ctx, domain.CheckpointRetrieval, in)
			if out.Rejected {
				reply, err := e.rejected(ctx, t, domain.CheckpointRetrieval, out)
				return "", reply, err
			}
			t.sess.Record(domain.TraceRetrieval, t.flow, fmt.Sprintf("%d chunks", len(chunks)))
			system = ContextPrompt(e.rails.Instructions, out.Text)
		}
	}

	answer, err := e.completer.Complete(ctx, domain.UserPrompt(system, t.text), e.rails.Generation)
	if err != nil {
		reply, err := e.failed(ctx, t, domain.CheckpointOutput, fmt.Errorf("%w: completion: %w", domain.ErrServiceUnavailable, err))
		return "", reply, err
	}
	return answer, nil, nil
}

func joinChunks(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, "\n\n")
}
