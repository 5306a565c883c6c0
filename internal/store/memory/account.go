package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
)

func (s *Store) CreateAccount(_ context.Context, a *accountdomain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(a.Email)
	if _, exists := s.emails[email]; exists {
		return accountdomain.ErrEmailTaken
	}
	cp := *a
	s.accounts[a.ID] = &cp
	s.emails[email] = a.ID
	return nil
}

func (s *Store) GetAccount(_ context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, accountdomain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*accountdomain.Account, error) {
	s.mu.RLock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	s.mu.RUnlock()
	if !ok {
		return nil, accountdomain.ErrNotFound
	}
	return s.GetAccount(ctx, id)
}

func (s *Store) ListAccounts(_ context.Context, filter accountdomain.ListFilter) ([]accountdomain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]accountdomain.Account, 0, len(s.accounts))
	for id, a := range s.accounts {
		if id > filter.AfterID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) UpdateAccountProfile(_ context.Context, a *accountdomain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.accounts[a.ID]
	if !ok {
		return accountdomain.ErrNotFound
	}
	existing.DisplayName = a.DisplayName
	existing.Role = a.Role
	existing.Approved = a.Approved
	existing.ExpiresAt = a.ExpiresAt
	existing.UpdatedAt = a.UpdatedAt
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, id snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return accountdomain.ErrNotFound
	}
	for sid, session := range s.sessions {
		if session.AccountID == id {
			delete(s.messages, sid)
			delete(s.sessions, sid)
		}
	}
	for _, aid := range s.accountArtifacts[id] {
		delete(s.artifacts, aid)
	}
	delete(s.accountArtifacts, id)
	delete(s.usage, id)
	delete(s.emails, strings.ToLower(a.Email))
	delete(s.accounts, id)
	return nil
}
