package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ChargeEntry struct {
	Record            UsageRecord
	RequireSufficient bool
}

type AdjustmentEntry struct {
	AccountID  snowflake.ID
	NewBalance int64
	Record     UsageRecord
	Logging    AdjustmentLogging
}

type AdjustmentOutcome struct {
	PreviousBalance int64
	Balance         int64
	Delta           int64
	Record          *UsageRecord
}

type UsageQuery struct {
	BeforeID snowflake.ID
	Limit    int
}

type Summary struct {
	Balance      int64
	InitialGrant int64
	UsageTotal   int64
	RecordCount  int64
}

// Store applies balance mutations together with their usage records as one unit.
type Store interface {
	// ApplyCharge debits -Record.Delta and appends Record, returning the post-charge balance.
	ApplyCharge(ctx context.Context, entry ChargeEntry) (int64, error)
	// ApplyAdjustment sets an absolute balance under a row lock.
	ApplyAdjustment(ctx context.Context, entry AdjustmentEntry) (*AdjustmentOutcome, error)
	ListUsage(ctx context.Context, accountID snowflake.ID, query UsageQuery) ([]UsageRecord, error)
	Summarize(ctx context.Context, accountID snowflake.ID) (*Summary, error)
}
