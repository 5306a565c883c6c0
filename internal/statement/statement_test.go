package statement

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	accountservice "github.com/smallbiznis/atelier/internal/account/service"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/atelier/internal/ledger/service"
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturePDF struct {
	data pdf.StatementData
	err  error
}

func (c *capturePDF) GenerateStatement(_ context.Context, data pdf.StatementData) (io.Reader, error) {
	c.data = data
	if c.err != nil {
		return nil, c.err
	}
	return bytes.NewReader([]byte("%PDF-1.3")), nil
}

func setup(t *testing.T, renderer pdf.Provider) (*Service, accountdomain.Service, ledgerdomain.Service) {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC))
	store := memory.New()

	accounts := accountservice.New(accountservice.Params{Log: zap.NewNop(), GenID: node, Clock: clk, Repo: store})
	ledger, err := ledgerservice.NewService(ledgerservice.Params{
		Cfg:   config.Config{},
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Store: store,
	})
	require.NoError(t, err)

	svc := NewService(Params{Log: zap.NewNop(), Clock: clk, Accounts: accounts, Ledger: ledger, PDF: renderer})
	return svc, accounts, ledger
}

func TestRenderCollectsAllUsage(t *testing.T) {
	renderer := &capturePDF{}
	svc, accounts, ledger := setup(t, renderer)
	ctx := context.Background()

	acc, err := accounts.Create(ctx, accountdomain.CreateRequest{Email: "ada@example.com", DisplayName: "Ada", InitialGrant: 1000, Approved: true})
	require.NoError(t, err)
	id, err := accountdomain.ParseID(acc.ID)
	require.NoError(t, err)

	for i := 0; i < 130; i++ {
		_, err := ledger.Charge(ctx, ledgerdomain.ChargeRequest{AccountID: id, Amount: 1, Feature: "chat.standard"})
		require.NoError(t, err)
	}

	r, err := svc.Render(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Len(t, renderer.data.Items, 130)
	assert.False(t, renderer.data.Truncated)
	assert.Equal(t, "870", renderer.data.Balance)
	assert.Equal(t, "-130", renderer.data.UsageTotal)
	assert.Equal(t, "2026-05-01 10:00 UTC", renderer.data.GeneratedAt)
}

func TestRenderUnknownAccount(t *testing.T) {
	svc, _, _ := setup(t, &capturePDF{})
	_, err := svc.Render(context.Background(), 12345)
	assert.ErrorIs(t, err, accountdomain.ErrNotFound)
}

func TestRenderFailureWrapped(t *testing.T) {
	svc, accounts, _ := setup(t, &capturePDF{err: errors.New("font missing")})
	ctx := context.Background()
	acc, err := accounts.Create(ctx, accountdomain.CreateRequest{Email: "bob@example.com", Approved: true})
	require.NoError(t, err)
	id, err := accountdomain.ParseID(acc.ID)
	require.NoError(t, err)

	_, err = svc.Render(ctx, id)
	assert.ErrorIs(t, err, ErrRenderFailed)
}
