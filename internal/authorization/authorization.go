package authorization

import (
	"context"
	"errors"
)

const ObjectCapability = "capability"

const (
	CapabilityChatStandard  = "chat.standard"
	CapabilityChatDeep      = "chat.deep"
	CapabilityImageResearch = "image.research"
	CapabilityImageEdit     = "image.edit"
	CapabilityImageStyle    = "image.style"
	CapabilityLedgerAdjust  = "ledger.adjust"
	CapabilityAccountManage = "account.manage"
)

var (
	ErrForbidden   = errors.New("forbidden")
	ErrInvalidRole = errors.New("invalid_role")
)

// Service answers role capability questions. Evaluation is pure and never touches storage.
type Service interface {
	Allowed(role, capability string) bool
	Authorize(ctx context.Context, role, capability string) error
}
