package authorization

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestCapabilityMatrix(t *testing.T) {
	svc := newService(t)

	matrix := map[string]map[string]bool{
		"user": {
			CapabilityChatStandard:  true,
			CapabilityImageResearch: true,
			CapabilityImageEdit:     true,
			CapabilityChatDeep:      false,
			CapabilityImageStyle:    false,
			CapabilityLedgerAdjust:  false,
			CapabilityAccountManage: false,
		},
		"pro": {
			CapabilityChatStandard:  true,
			CapabilityImageResearch: true,
			CapabilityImageEdit:     true,
			CapabilityChatDeep:      true,
			CapabilityImageStyle:    true,
			CapabilityLedgerAdjust:  false,
			CapabilityAccountManage: false,
		},
		"admin": {
			CapabilityChatStandard:  true,
			CapabilityImageResearch: true,
			CapabilityImageEdit:     true,
			CapabilityChatDeep:      true,
			CapabilityImageStyle:    true,
			CapabilityLedgerAdjust:  true,
			CapabilityAccountManage: true,
		},
	}

	for role, caps := range matrix {
		for capability, want := range caps {
			assert.Equal(t, want, svc.Allowed(role, capability), "%s -> %s", role, capability)
		}
	}
}

func TestUnknownRoleAndCapability(t *testing.T) {
	svc := newService(t)

	assert.False(t, svc.Allowed("guest", CapabilityChatStandard))
	assert.False(t, svc.Allowed("admin", "nuke.everything"))

	assert.ErrorIs(t, svc.Authorize(context.Background(), "guest", CapabilityChatStandard), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(context.Background(), "user", CapabilityImageStyle), ErrForbidden)
	assert.NoError(t, svc.Authorize(context.Background(), "PRO", CapabilityImageStyle))
}
