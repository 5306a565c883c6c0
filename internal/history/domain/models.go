package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Mode string

const (
	ModeStandard Mode = "standard"
	ModeDeep     Mode = "deep"
)

func (m Mode) Valid() bool {
	return m == ModeStandard || m == ModeDeep
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

func (r MessageRole) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Session is one chat conversation. LastActivityAt never trails its newest message.
type Session struct {
	ID             snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID      snowflake.ID `json:"account_id" gorm:"not null;index:ix_chat_sessions_account_activity,priority:1"`
	Title          string       `json:"title" gorm:"size:255;not null;default:''"`
	Mode           Mode         `json:"mode" gorm:"size:16;not null"`
	LastActivityAt time.Time    `json:"last_activity_at" gorm:"not null;index:ix_chat_sessions_account_activity,priority:2"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null"`
}

func (Session) TableName() string { return "chat_sessions" }

type Message struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	SessionID snowflake.ID `json:"session_id" gorm:"not null;index:ix_chat_messages_session"`
	Role      MessageRole  `json:"role" gorm:"size:16;not null"`
	Content   string       `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Message) TableName() string { return "chat_messages" }
