package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReply_RejectionWireFormat(t *testing.T) {
	r := &Reply{
		SessionID: "s1",
		Status:    StatusTerminated,
		Rejection: &GuardRejection{
			Checkpoint: CheckpointOutput,
			Guard:      "house_rules",
			Messages:   []string{"First line."},
			Message:    "Let's change the subject.",
		},
	}
	assert.Equal(t, "First line.\nLet's change the subject.", r.Text())

	b, err := json.Marshal(r)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "house_rules")
	assert.JSONEq(t, `{
		"session_id": "s1",
		"status": "terminated",
		"rejection": {
			"checkpoint": "output",
			"messages": ["First line."],
			"message": "Let's change the subject."
		}
	}`, string(b))
}

func TestReply_TextWithoutEarlierMessages(t *testing.T) {
	r := &Reply{Rejection: &GuardRejection{Checkpoint: CheckpointInput, Message: "No."}}
	assert.Equal(t, "No.", r.Text())
	assert.Equal(t, []string{"No."}, r.Rejection.Output())

	var nilReply *Reply
	assert.Empty(t, nilReply.Text())
}
