package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type ListQuery struct {
	BeforeID snowflake.ID
	Limit    int
}

type Repository interface {
	CreateArtifact(ctx context.Context, a *Artifact) error
	GetArtifact(ctx context.Context, id snowflake.ID) (*Artifact, error)
	// DeleteArtifact removes the row only; the stored object is left in place.
	DeleteArtifact(ctx context.Context, id snowflake.ID) error
	// ListArtifacts returns an account's artifacts newest first.
	ListArtifacts(ctx context.Context, accountID snowflake.ID, query ListQuery) ([]Artifact, error)
}
