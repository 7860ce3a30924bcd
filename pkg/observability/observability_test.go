package observability_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/railyard/pkg/domain"
	"github.com/aretw0/railyard/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Hooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	h := m.Hooks()
	ctx := context.Background()

	h.OnTurnEnd(ctx, &domain.TurnEvent{Outcome: domain.OutcomeResponse, Duration: 20 * time.Millisecond})
	h.OnTurnEnd(ctx, &domain.TurnEvent{Outcome: domain.OutcomeRejected})
	h.OnIntentResolved(ctx, &domain.IntentEvent{Intent: "greeting"})
	h.OnFlowEnter(ctx, &domain.FlowEvent{Flow: "greet"})
	h.OnFlowExit(ctx, &domain.FlowEvent{Flow: "greet", Reason: "completed"})
	h.OnGuard(ctx, &domain.GuardEvent{Checkpoint: domain.CheckpointInput, Guard: "pii", Verdict: domain.VerdictRevise})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues(domain.OutcomeResponse)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Turns.WithLabelValues(domain.OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Intents.WithLabelValues("greeting")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowEntries.WithLabelValues("greet")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FlowExits.WithLabelValues("greet", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Guards.WithLabelValues("input", "pii", "revise")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TurnDuration))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `railyard_guard_verdicts_total{checkpoint="input",guard="pii",verdict="revise"} 1`)
}

func TestMetrics_PrivateRegistry(t *testing.T) {
	// Two instances must not collide on registration.
	assert.NotPanics(t, func() {
		observability.NewMetrics(nil)
		observability.NewMetrics(nil)
	})
}

func TestLogHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	h := observability.LogHooks(logger)
	ctx := context.Background()

	h.OnFlowEnter(ctx, &domain.FlowEvent{Flow: "greet"})
	assert.Empty(t, buf.String(), "flow events log at debug")

	h.OnGuard(ctx, &domain.GuardEvent{Guard: "blocklist", Verdict: domain.VerdictReject, Reason: "blocked term"})
	require.Contains(t, buf.String(), `"msg":"guard_check"`)
	assert.Contains(t, buf.String(), `"guard":"blocklist"`)

	buf.Reset()
	h.OnTurnEnd(ctx, &domain.TurnEvent{EventBase: domain.EventBase{SessionID: "s1"}, Turn: 3, Outcome: domain.OutcomeResponse})
	assert.Contains(t, buf.String(), `"session_id":"s1"`)
	assert.Contains(t, buf.String(), `"outcome":"response"`)
}
