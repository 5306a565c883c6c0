package memory

import (
	"context"
	"sort"

	"github.com/bwmarrin/snowflake"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
)

func (s *Store) CreateSession(_ context.Context, session *historydomain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *Store) GetSession(_ context.Context, id snowflake.ID) (*historydomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, historydomain.ErrSessionNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *Store) ListSessions(_ context.Context, accountID snowflake.ID, limit int) ([]historydomain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]historydomain.Session, 0)
	for _, session := range s.sessions {
		if session.AccountID == accountID {
			out = append(out, *session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityAt.Equal(out[j].LastActivityAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].LastActivityAt.After(out[j].LastActivityAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) AppendMessage(_ context.Context, m *historydomain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[m.SessionID]
	if !ok {
		return historydomain.ErrSessionNotFound
	}
	s.messages[m.SessionID] = append(s.messages[m.SessionID], *m)
	if session.LastActivityAt.Before(m.CreatedAt) {
		session.LastActivityAt = m.CreatedAt
	}
	return nil
}

func (s *Store) ListRecentMessages(_ context.Context, sessionID snowflake.ID, limit int) ([]historydomain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	start := 0
	if limit > 0 && len(msgs) > limit {
		start = len(msgs) - limit
	}
	out := make([]historydomain.Message, len(msgs)-start)
	copy(out, msgs[start:])
	return out, nil
}

func (s *Store) UpdateSessionTitle(_ context.Context, id snowflake.ID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return historydomain.ErrSessionNotFound
	}
	session.Title = title
	return nil
}

func (s *Store) DeleteSession(_ context.Context, id snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return historydomain.ErrSessionNotFound
	}
	delete(s.messages, id)
	delete(s.sessions, id)
	return nil
}
