package cmd

import (
	"context"
	"testing"

	"github.com/profiles-api/apiserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogAccountEvent(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := logAccountEvent(zap.New(core))

	err := handler(context.Background(), mq.Message{
		ID:   "m-1",
		Data: []byte(`{"type":"account.created","account_id":7,"email":"ada@example.com","occurred_at":"2026-01-02T03:04:05Z"}`),
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("account event").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "account.created", fields["type"])
	assert.Equal(t, int64(7), fields["account_id"])
	assert.Equal(t, "m-1", fields["message_id"])
}

func TestLogAccountEventDropsMalformed(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	handler := logAccountEvent(zap.New(core))

	require.NoError(t, handler(context.Background(), mq.Message{ID: "m-2", Data: []byte("not json")}))
	require.NoError(t, handler(context.Background(), mq.Message{ID: "m-3", Data: []byte(`{"account_id":1}`)}))
	assert.Equal(t, 2, logs.FilterMessage("malformed account event").Len())
}
