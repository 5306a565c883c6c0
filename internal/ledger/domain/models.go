package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

const LabelAdministrativeAdjustment = "administrative adjustment"

// UsageRecord is an immutable signed delta against an account balance.
// Negative deltas are charges, positive deltas are credits.
type UsageRecord struct {
	ID          snowflake.ID  `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID   snowflake.ID  `json:"account_id" gorm:"not null;index:ix_usage_records_account"`
	Feature     string        `json:"feature" gorm:"size:64;not null"`
	Delta       int64         `json:"delta" gorm:"not null"`
	ReferenceID *snowflake.ID `json:"reference_id,omitempty" gorm:"index:ix_usage_records_reference"`
	CreatedAt   time.Time     `json:"created_at" gorm:"not null"`
}

func (UsageRecord) TableName() string { return "usage_records" }

// BalancePolicy decides whether a charge may drive a balance below zero.
type BalancePolicy string

const (
	BalancePolicyAllowNegative      BalancePolicy = "allow_negative"
	BalancePolicyRejectInsufficient BalancePolicy = "reject_insufficient"
)

func ParseBalancePolicy(raw string) (BalancePolicy, error) {
	switch BalancePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", BalancePolicyAllowNegative:
		return BalancePolicyAllowNegative, nil
	case BalancePolicyRejectInsufficient:
		return BalancePolicyRejectInsufficient, nil
	default:
		return "", fmt.Errorf("unknown ledger balance policy %q", raw)
	}
}

// AdjustmentLogging decides which administrative balance changes produce usage records.
type AdjustmentLogging string

const (
	// AdjustmentLoggingSymmetric records every non-zero adjustment, keeping balance == grant + Σ delta.
	AdjustmentLoggingSymmetric AdjustmentLogging = "symmetric"
	// AdjustmentLoggingCreditOnly records only increases; decreases change the balance silently.
	AdjustmentLoggingCreditOnly AdjustmentLogging = "credit_only"
)

func ParseAdjustmentLogging(raw string) (AdjustmentLogging, error) {
	switch AdjustmentLogging(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AdjustmentLoggingSymmetric:
		return AdjustmentLoggingSymmetric, nil
	case AdjustmentLoggingCreditOnly:
		return AdjustmentLoggingCreditOnly, nil
	default:
		return "", fmt.Errorf("unknown ledger adjustment logging %q", raw)
	}
}

// Records reports whether an adjustment of delta is appended under this mode.
func (m AdjustmentLogging) Records(delta int64) bool {
	switch {
	case delta > 0:
		return true
	case delta < 0:
		return m == AdjustmentLoggingSymmetric
	default:
		return false
	}
}
