package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/railyard/pkg/domain"
)

// LogHooks returns lifecycle hooks that write every event to logger.
// Turn boundaries and guard rejections log at Info, the rest at Debug.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	if logger == nil {
		logger = slog.Default()
	}
	return domain.LifecycleHooks{
		OnTurnStart: func(ctx context.Context, e *domain.TurnEvent) {
			logger.DebugContext(ctx, "turn_start", "session_id", e.SessionID, "turn", e.Turn)
		},
		OnTurnEnd: func(ctx context.Context, e *domain.TurnEvent) {
			logger.InfoContext(ctx, "turn_end",
				"session_id", e.SessionID,
				"turn", e.Turn,
				"outcome", e.Outcome,
				"duration", e.Duration,
			)
		},
		OnIntentResolved: func(ctx context.Context, e *domain.IntentEvent) {
			logger.DebugContext(ctx, "intent_resolved",
				"session_id", e.SessionID,
				"intent", e.Intent,
				"score", e.Score,
				"exact", e.Exact,
			)
		},
		OnFlowEnter: func(ctx context.Context, e *domain.FlowEvent) {
			logger.DebugContext(ctx, "flow_enter", "session_id", e.SessionID, "flow", e.Flow)
		},
		OnFlowExit: func(ctx context.Context, e *domain.FlowEvent) {
			logger.DebugContext(ctx, "flow_exit", "session_id", e.SessionID, "flow", e.Flow, "reason", e.Reason)
		},
		OnGuard: func(ctx context.Context, e *domain.GuardEvent) {
			level := slog.LevelDebug
			if e.Verdict == domain.VerdictReject {
				level = slog.LevelInfo
			}
			logger.Log(ctx, level, "guard_check",
				"session_id", e.SessionID,
				"checkpoint", e.Checkpoint,
				"guard", e.Guard,
				"verdict", e.Verdict,
				"reason", e.Reason,
			)
		},
	}
}
