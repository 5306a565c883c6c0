package seed

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	accountservice "github.com/smallbiznis/atelier/internal/account/service"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/store/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEnsureAdminIsIdempotent(t *testing.T) {
	ctx := context.Background()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	store := memory.New()
	svc := accountservice.New(accountservice.Params{
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  store,
	})
	cfg := config.BootstrapConfig{AdminEmail: "root@example.com", AdminGrant: 5000}

	require.NoError(t, EnsureAdmin(ctx, svc, store, cfg, zap.NewNop()))
	require.NoError(t, EnsureAdmin(ctx, svc, store, cfg, zap.NewNop()))

	admin, err := store.GetAccountByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.Equal(t, accountdomain.RoleAdmin, admin.Role)
	require.True(t, admin.Approved)
	require.EqualValues(t, 5000, admin.TokenBalance)

	list, err := store.ListAccounts(ctx, accountdomain.ListFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestEnsureAdminSkipsWithoutEmail(t *testing.T) {
	require.NoError(t, EnsureAdmin(context.Background(), nil, nil, config.BootstrapConfig{}, zap.NewNop()))
}
