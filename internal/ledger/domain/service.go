package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

type Service interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Adjust(ctx context.Context, req AdjustRequest) (*AdjustResult, error)
	ListUsage(ctx context.Context, req ListUsageRequest) (*ListUsageResponse, error)
	Reconcile(ctx context.Context, accountID snowflake.ID) (*Reconciliation, error)
	BalancePolicy() BalancePolicy
}

type ChargeRequest struct {
	AccountID   snowflake.ID
	Amount      int64
	Feature     string
	ReferenceID *snowflake.ID
}

type ChargeResult struct {
	Balance int64       `json:"balance"`
	Record  UsageRecord `json:"record"`
}

type AdjustRequest struct {
	AccountID    snowflake.ID
	NewBalance   int64
	ActorIsAdmin bool
}

type AdjustResult struct {
	PreviousBalance int64        `json:"previous_balance"`
	Balance         int64        `json:"balance"`
	Delta           int64        `json:"delta"`
	Record          *UsageRecord `json:"record,omitempty"`
}

type ListUsageRequest struct {
	AccountID snowflake.ID
	pagination.Pagination
}

type UsageRecordResponse struct {
	ID          string    `json:"id"`
	Feature     string    `json:"feature"`
	Delta       int64     `json:"delta"`
	ReferenceID string    `json:"reference_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type ListUsageResponse struct {
	Records  []UsageRecordResponse `json:"records"`
	PageInfo pagination.PageInfo   `json:"page_info"`
}

// Reconciliation compares the stored balance with initial grant plus recorded deltas.
type Reconciliation struct {
	AccountID    string `json:"account_id"`
	Balance      int64  `json:"balance"`
	InitialGrant int64  `json:"initial_grant"`
	UsageTotal   int64  `json:"usage_total"`
	RecordCount  int64  `json:"record_count"`
	Drift        int64  `json:"drift"`
	Consistent   bool   `json:"consistent"`
}

var (
	ErrInvalidAccount      = errors.New("invalid_account")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidFeature      = errors.New("invalid_feature")
	ErrAccountNotFound     = errors.New("account_not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrForbidden           = errors.New("forbidden")
	ErrLedgerUnavailable   = errors.New("ledger_unavailable")
)

func ToUsageResponse(r UsageRecord) UsageRecordResponse {
	resp := UsageRecordResponse{
		ID:        r.ID.String(),
		Feature:   r.Feature,
		Delta:     r.Delta,
		CreatedAt: r.CreatedAt,
	}
	if r.ReferenceID != nil {
		resp.ReferenceID = r.ReferenceID.String()
	}
	return resp
}
