package notify

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogNotifier(t *testing.T) {
	log, hook := test.NewNullLogger()

	n := NewLogNotifier(log)

	err := n.Notify(context.Background(), &Message{
		Recipients: []string{"qa@example.com", "lead@example.com"},
		Subject:    "Daily TLA Report 2024-03-05",
		Body:       "Top 3 categories:",
	})
	require.NoError(t, err)

	entries := hook.AllEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, logrus.InfoLevel, entries[0].Level)
	assert.Equal(t, "qa@example.com,lead@example.com", entries[0].Data["recipients"])
	assert.Equal(t, "notify", entries[0].Data["component"])
	assert.Contains(t, entries[1].Message, "Top 3 categories:")
}

func TestLogNotifier_Errors(t *testing.T) {
	log, hook := test.NewNullLogger()
	n := NewLogNotifier(log)

	assert.ErrorIs(t, n.Notify(context.Background(), &Message{}), ErrNoRecipients)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Notify(ctx, &Message{Recipients: []string{"a@b"}}), context.Canceled)

	assert.Empty(t, hook.AllEntries())
}
