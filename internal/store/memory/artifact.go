package memory

import (
	"context"

	"github.com/bwmarrin/snowflake"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
)

func (s *Store) CreateArtifact(_ context.Context, a *artifactdomain.Artifact) error {
	if !a.Kind.Valid() {
		return artifactdomain.ErrInvalidKind
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *a
	s.artifacts[a.ID] = &cp
	s.accountArtifacts[a.AccountID] = append(s.accountArtifacts[a.AccountID], a.ID)
	return nil
}

func (s *Store) GetArtifact(_ context.Context, id snowflake.ID) (*artifactdomain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil, artifactdomain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) DeleteArtifact(_ context.Context, id snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.artifacts[id]
	if !ok {
		return nil
	}
	delete(s.artifacts, id)
	ids := s.accountArtifacts[a.AccountID]
	for i, v := range ids {
		if v == id {
			s.accountArtifacts[a.AccountID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListArtifacts(_ context.Context, accountID snowflake.ID, query artifactdomain.ListQuery) ([]artifactdomain.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.accountArtifacts[accountID]
	out := make([]artifactdomain.Artifact, 0, query.Limit)
	for i := len(ids) - 1; i >= 0; i-- {
		if query.BeforeID != 0 && ids[i] >= query.BeforeID {
			continue
		}
		out = append(out, *s.artifacts[ids[i]])
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}
