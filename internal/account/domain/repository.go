package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ListFilter struct {
	AfterID snowflake.ID
	Limit   int
}

// Repository persists accounts. Balance columns are written only by the ledger store.
type Repository interface {
	CreateAccount(ctx context.Context, account *Account) error
	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	ListAccounts(ctx context.Context, filter ListFilter) ([]Account, error)
	UpdateAccountProfile(ctx context.Context, account *Account) error
	// DeleteAccount removes the account together with its usage, artifacts and chat history.
	DeleteAccount(ctx context.Context, id snowflake.ID) error
}
