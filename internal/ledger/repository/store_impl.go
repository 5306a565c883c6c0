package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const usageColumns = `id, account_id, feature, delta, reference_id, created_at`

type store struct {
	db *gorm.DB
}

func New(conn *gorm.DB) ledgerdomain.Store {
	return &store{db: conn}
}

type balanceRow struct {
	ID           snowflake.ID
	TokenBalance int64
}

func (s *store) ApplyCharge(ctx context.Context, entry ledgerdomain.ChargeEntry) (int64, error) {
	rec := entry.Record
	amount := -rec.Delta

	var balance int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var res *gorm.DB
		if entry.RequireSufficient {
			res = tx.Exec(
				`UPDATE accounts SET token_balance = token_balance - ?
				 WHERE id = ? AND token_balance >= ?`,
				amount, rec.AccountID, amount,
			)
		} else {
			res = tx.Exec(
				`UPDATE accounts SET token_balance = token_balance - ? WHERE id = ?`,
				amount, rec.AccountID,
			)
		}
		if res.Error != nil {
			return res.Error
		}

		var row balanceRow
		if err := tx.Raw(
			`SELECT id, token_balance FROM accounts WHERE id = ?`,
			rec.AccountID,
		).Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == 0 {
			return ledgerdomain.ErrAccountNotFound
		}
		// MySQL reports zero rows for a no-op update, so only a positive debit counts as refused.
		if res.RowsAffected == 0 && amount > 0 {
			return ledgerdomain.ErrInsufficientBalance
		}
		balance = row.TokenBalance

		return insertUsage(tx, rec)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *store) ApplyAdjustment(ctx context.Context, entry ledgerdomain.AdjustmentEntry) (*ledgerdomain.AdjustmentOutcome, error) {
	var outcome ledgerdomain.AdjustmentOutcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row balanceRow
		if err := tx.Table("accounts").
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id, token_balance").
			Where("id = ?", entry.AccountID).
			Scan(&row).Error; err != nil {
			return err
		}
		if row.ID == 0 {
			return ledgerdomain.ErrAccountNotFound
		}

		delta := entry.NewBalance - row.TokenBalance
		outcome = ledgerdomain.AdjustmentOutcome{
			PreviousBalance: row.TokenBalance,
			Balance:         entry.NewBalance,
			Delta:           delta,
		}
		if delta == 0 {
			return nil
		}

		if err := tx.Exec(
			`UPDATE accounts SET token_balance = ? WHERE id = ?`,
			entry.NewBalance, entry.AccountID,
		).Error; err != nil {
			return err
		}

		if !entry.Logging.Records(delta) {
			return nil
		}
		rec := entry.Record
		rec.AccountID = entry.AccountID
		rec.Delta = delta
		if err := insertUsage(tx, rec); err != nil {
			return err
		}
		outcome.Record = &rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &outcome, nil
}

func (s *store) ListUsage(ctx context.Context, accountID snowflake.ID, query ledgerdomain.UsageQuery) ([]ledgerdomain.UsageRecord, error) {
	stmt := `SELECT ` + usageColumns + ` FROM usage_records WHERE account_id = ?`
	args := []any{accountID}
	if query.BeforeID != 0 {
		stmt += ` AND id < ?`
		args = append(args, query.BeforeID)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, query.Limit)

	var records []ledgerdomain.UsageRecord
	if err := s.db.WithContext(ctx).Raw(stmt, args...).Scan(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

type summaryRow struct {
	ID           snowflake.ID
	TokenBalance int64
	InitialGrant int64
	UsageTotal   int64
	RecordCount  int64
}

func (s *store) Summarize(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.Summary, error) {
	var row summaryRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT a.id, a.token_balance, a.initial_grant,
		        COALESCE((SELECT SUM(u.delta) FROM usage_records u WHERE u.account_id = a.id), 0) AS usage_total,
		        (SELECT COUNT(1) FROM usage_records u WHERE u.account_id = a.id) AS record_count
		 FROM accounts a WHERE a.id = ?`,
		accountID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, ledgerdomain.ErrAccountNotFound
	}
	return &ledgerdomain.Summary{
		Balance:      row.TokenBalance,
		InitialGrant: row.InitialGrant,
		UsageTotal:   row.UsageTotal,
		RecordCount:  row.RecordCount,
	}, nil
}

func insertUsage(tx *gorm.DB, rec ledgerdomain.UsageRecord) error {
	return tx.Exec(
		`INSERT INTO usage_records (`+usageColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.AccountID,
		rec.Feature,
		rec.Delta,
		rec.ReferenceID,
		rec.CreatedAt,
	).Error
}
