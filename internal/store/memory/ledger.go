package memory

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
)

func (s *Store) ApplyCharge(_ context.Context, entry ledgerdomain.ChargeEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := entry.Record
	a, ok := s.accounts[rec.AccountID]
	if !ok {
		return 0, ledgerdomain.ErrAccountNotFound
	}
	amount := -rec.Delta
	if entry.RequireSufficient && amount > 0 && a.TokenBalance < amount {
		return 0, ledgerdomain.ErrInsufficientBalance
	}

	a.TokenBalance -= amount
	s.usage[rec.AccountID] = append(s.usage[rec.AccountID], rec)
	return a.TokenBalance, nil
}

func (s *Store) ApplyAdjustment(_ context.Context, entry ledgerdomain.AdjustmentEntry) (*ledgerdomain.AdjustmentOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[entry.AccountID]
	if !ok {
		return nil, ledgerdomain.ErrAccountNotFound
	}

	delta := entry.NewBalance - a.TokenBalance
	outcome := &ledgerdomain.AdjustmentOutcome{
		PreviousBalance: a.TokenBalance,
		Balance:         entry.NewBalance,
		Delta:           delta,
	}
	if delta == 0 {
		return outcome, nil
	}

	a.TokenBalance = entry.NewBalance
	if entry.Logging.Records(delta) {
		rec := entry.Record
		rec.AccountID = entry.AccountID
		rec.Delta = delta
		s.usage[entry.AccountID] = append(s.usage[entry.AccountID], rec)
		outcome.Record = &rec
	}
	return outcome, nil
}

func (s *Store) ListUsage(_ context.Context, accountID snowflake.ID, query ledgerdomain.UsageQuery) ([]ledgerdomain.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.usage[accountID]
	out := make([]ledgerdomain.UsageRecord, 0, query.Limit)
	for i := len(records) - 1; i >= 0; i-- {
		r := records[i]
		if query.BeforeID != 0 && r.ID >= query.BeforeID {
			continue
		}
		out = append(out, r)
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Summarize(_ context.Context, accountID snowflake.ID) (*ledgerdomain.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	summary := &ledgerdomain.Summary{
		Balance:      a.TokenBalance,
		InitialGrant: a.InitialGrant,
	}
	for _, r := range s.usage[accountID] {
		summary.UsageTotal += r.Delta
		summary.RecordCount++
	}
	return summary, nil
}
