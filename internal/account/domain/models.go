package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleUser  Role = "user"
	RolePro   Role = "pro"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RolePro, RoleAdmin:
		return true
	default:
		return false
	}
}

// Account owns a prepaid token balance. TokenBalance changes only through the ledger.
type Account struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	Email        string       `json:"email" gorm:"size:255;not null;uniqueIndex:ux_accounts_email"`
	DisplayName  string       `json:"display_name" gorm:"size:255;not null;default:''"`
	Role         Role         `json:"role" gorm:"size:16;not null"`
	TokenBalance int64        `json:"token_balance" gorm:"not null;default:0"`
	InitialGrant int64        `json:"initial_grant" gorm:"not null;default:0"`
	Approved     bool         `json:"approved" gorm:"not null;default:false"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
	CreatedAt    time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }

// Active reports whether the account may consume tokens at now.
func (a *Account) Active(now time.Time) bool {
	if a == nil || !a.Approved {
		return false
	}
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}
