package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/pkg/db"
	"gorm.io/gorm"
)

const accountColumns = `id, email, display_name, role, token_balance, initial_grant, approved, expires_at, created_at, updated_at`

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) accountdomain.Repository {
	return &repo{db: conn}
}

func (r *repo) CreateAccount(ctx context.Context, a *accountdomain.Account) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.Email,
		a.DisplayName,
		a.Role,
		a.TokenBalance,
		a.InitialGrant,
		a.Approved,
		a.ExpiresAt,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
	if db.IsDuplicateKeyErr(err) {
		return accountdomain.ErrEmailTaken
	}
	return err
}

func (r *repo) GetAccount(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, accountdomain.ErrNotFound
	}
	return &account, nil
}

func (r *repo) GetAccountByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	var account accountdomain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, accountdomain.ErrNotFound
	}
	return &account, nil
}

func (r *repo) ListAccounts(ctx context.Context, filter accountdomain.ListFilter) ([]accountdomain.Account, error) {
	var accounts []accountdomain.Account
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+accountColumns+` FROM accounts WHERE id > ? ORDER BY id ASC LIMIT ?`,
		filter.AfterID,
		filter.Limit,
	).Scan(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repo) UpdateAccountProfile(ctx context.Context, a *accountdomain.Account) error {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET display_name = ?, role = ?, approved = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		a.DisplayName,
		a.Role,
		a.Approved,
		a.ExpiresAt,
		a.UpdatedAt,
		a.ID,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return accountdomain.ErrNotFound
	}
	return nil
}

func (r *repo) DeleteAccount(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		statements := []string{
			`DELETE FROM chat_messages WHERE session_id IN (SELECT id FROM chat_sessions WHERE account_id = ?)`,
			`DELETE FROM chat_sessions WHERE account_id = ?`,
			`DELETE FROM artifacts WHERE account_id = ?`,
			`DELETE FROM usage_records WHERE account_id = ?`,
		}
		for _, stmt := range statements {
			if err := tx.Exec(stmt, id).Error; err != nil {
				return err
			}
		}

		res := tx.Exec(`DELETE FROM accounts WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return accountdomain.ErrNotFound
		}
		return nil
	})
}
