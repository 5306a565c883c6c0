package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id snowflake.ID) (*Session, error)
	ListSessions(ctx context.Context, accountID snowflake.ID, limit int) ([]Session, error)
	// AppendMessage inserts m and moves the session's activity forward, never backward.
	AppendMessage(ctx context.Context, m *Message) error
	// ListRecentMessages returns the newest limit messages in ascending order.
	ListRecentMessages(ctx context.Context, sessionID snowflake.ID, limit int) ([]Message, error)
	UpdateSessionTitle(ctx context.Context, id snowflake.ID, title string) error
	DeleteSession(ctx context.Context, id snowflake.ID) error
}
