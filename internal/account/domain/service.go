package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	UpdateProfile(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
}

type CreateRequest struct {
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	Role         string     `json:"role"`
	InitialGrant int64      `json:"initial_grant"`
	Approved     bool       `json:"approved"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// UpdateRequest edits profile fields only; the balance is owned by the ledger.
type UpdateRequest struct {
	ID           string     `json:"-"`
	DisplayName  *string    `json:"display_name,omitempty"`
	Role         *string    `json:"role,omitempty"`
	Approved     *bool      `json:"approved,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ClearExpires bool       `json:"clear_expires,omitempty"`
}

type ListRequest struct {
	pagination.Pagination
}

type ListResponse struct {
	Accounts []Response          `json:"accounts"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type Response struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	DisplayName  string     `json:"display_name"`
	Role         string     `json:"role"`
	TokenBalance int64      `json:"token_balance"`
	Approved     bool       `json:"approved"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

var (
	ErrInvalidID    = errors.New("invalid_account_id")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrInvalidGrant = errors.New("invalid_initial_grant")
	ErrEmailTaken   = errors.New("email_taken")
	ErrNotFound     = errors.New("account_not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(value)
	if err != nil || id <= 0 {
		return 0, ErrInvalidID
	}
	return id, nil
}

func ToResponse(a *Account) *Response {
	return &Response{
		ID:           a.ID.String(),
		Email:        a.Email,
		DisplayName:  a.DisplayName,
		Role:         string(a.Role),
		TokenBalance: a.TokenBalance,
		Approved:     a.Approved,
		ExpiresAt:    a.ExpiresAt,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
