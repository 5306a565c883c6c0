package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateStatementProducesPDF(t *testing.T) {
	r, err := New().GenerateStatement(context.Background(), StatementData{
		AccountID:    "1",
		AccountEmail: "ada@example.com",
		DisplayName:  "Ada",
		GeneratedAt:  "2026-05-01 10:00 UTC",
		InitialGrant: "1000",
		UsageTotal:   "-150",
		Balance:      "850",
		Items: []StatementItem{
			{Date: "2026-05-01 09:00", Feature: "image.research", Reference: "77", Delta: "-150"},
		},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestGenerateStatementHonoursCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().GenerateStatement(ctx, StatementData{})
	require.ErrorIs(t, err, context.Canceled)
}
