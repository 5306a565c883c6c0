package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	"gorm.io/gorm"
)

const (
	sessionColumns = `id, account_id, title, mode, last_activity_at, created_at`
	messageColumns = `id, session_id, role, content, created_at`
)

type store struct {
	db *gorm.DB
}

func New(conn *gorm.DB) historydomain.Store {
	return &store{db: conn}
}

func (s *store) CreateSession(ctx context.Context, session *historydomain.Session) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO chat_sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.AccountID,
		session.Title,
		session.Mode,
		session.LastActivityAt,
		session.CreatedAt,
	).Error
}

func (s *store) GetSession(ctx context.Context, id snowflake.ID) (*historydomain.Session, error) {
	var session historydomain.Session
	err := s.db.WithContext(ctx).Raw(
		`SELECT `+sessionColumns+` FROM chat_sessions WHERE id = ?`,
		id,
	).Scan(&session).Error
	if err != nil {
		return nil, err
	}
	if session.ID == 0 {
		return nil, historydomain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *store) ListSessions(ctx context.Context, accountID snowflake.ID, limit int) ([]historydomain.Session, error) {
	var sessions []historydomain.Session
	err := s.db.WithContext(ctx).Raw(
		`SELECT `+sessionColumns+` FROM chat_sessions
		 WHERE account_id = ?
		 ORDER BY last_activity_at DESC, id DESC
		 LIMIT ?`,
		accountID,
		limit,
	).Scan(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

func (s *store) AppendMessage(ctx context.Context, m *historydomain.Message) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Raw(`SELECT COUNT(1) FROM chat_sessions WHERE id = ?`, m.SessionID).Scan(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return historydomain.ErrSessionNotFound
		}

		if err := tx.Exec(
			`INSERT INTO chat_messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?)`,
			m.ID,
			m.SessionID,
			m.Role,
			m.Content,
			m.CreatedAt,
		).Error; err != nil {
			return err
		}

		return tx.Exec(
			`UPDATE chat_sessions
			 SET last_activity_at = CASE WHEN last_activity_at < ? THEN ? ELSE last_activity_at END
			 WHERE id = ?`,
			m.CreatedAt,
			m.CreatedAt,
			m.SessionID,
		).Error
	})
}

func (s *store) ListRecentMessages(ctx context.Context, sessionID snowflake.ID, limit int) ([]historydomain.Message, error) {
	var messages []historydomain.Message
	err := s.db.WithContext(ctx).Raw(
		`SELECT `+messageColumns+` FROM (
			SELECT `+messageColumns+` FROM chat_messages
			WHERE session_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
		limit,
	).Scan(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *store) UpdateSessionTitle(ctx context.Context, id snowflake.ID, title string) error {
	res := s.db.WithContext(ctx).Exec(
		`UPDATE chat_sessions SET title = ? WHERE id = ?`,
		title,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Raw(`SELECT COUNT(1) FROM chat_sessions WHERE id = ?`, id).Scan(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return historydomain.ErrSessionNotFound
		}
	}
	return nil
}

func (s *store) DeleteSession(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`DELETE FROM chat_messages WHERE session_id = ?`, id).Error; err != nil {
			return err
		}
		res := tx.Exec(`DELETE FROM chat_sessions WHERE id = ?`, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return historydomain.ErrSessionNotFound
		}
		return nil
	})
}
