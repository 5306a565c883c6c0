package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsOnlyPresentFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithAction(ctx, "01HACTION", "chat_turn")
	WithContext(ctx, zap.New(core)).Info("hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "01HACTION", fields["action_id"])
	assert.Equal(t, "chat_turn", fields["action_kind"])
	assert.NotContains(t, fields, "account_id")
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextLeavesBareContextAlone(t *testing.T) {
	base := zap.NewNop()
	assert.Same(t, base, WithContext(context.Background(), base))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "chatty"})
	assert.Error(t, err)
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "UPDATE", operationFromSQL("  update accounts SET token_balance = 1"))
	assert.Equal(t, "SELECT", operationFromSQL("(SELECT 1)"))
	assert.Equal(t, "UNKNOWN", operationFromSQL("VACUUM"))
}
