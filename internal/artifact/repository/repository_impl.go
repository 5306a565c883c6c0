package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"gorm.io/gorm"
)

const artifactColumns = `id, account_id, object_key, content_type, size_bytes, kind, prompt, parent_id, metadata, created_at`

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) artifactdomain.Repository {
	return &repo{db: conn}
}

func (r *repo) CreateArtifact(ctx context.Context, a *artifactdomain.Artifact) error {
	if !a.Kind.Valid() {
		return artifactdomain.ErrInvalidKind
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO artifacts (`+artifactColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.AccountID,
		a.ObjectKey,
		a.ContentType,
		a.SizeBytes,
		a.Kind,
		a.Prompt,
		a.ParentID,
		a.Metadata,
		a.CreatedAt,
	).Error
}

func (r *repo) GetArtifact(ctx context.Context, id snowflake.ID) (*artifactdomain.Artifact, error) {
	var artifact artifactdomain.Artifact
	err := r.db.WithContext(ctx).Raw(
		`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`,
		id,
	).Scan(&artifact).Error
	if err != nil {
		return nil, err
	}
	if artifact.ID == 0 {
		return nil, artifactdomain.ErrNotFound
	}
	return &artifact, nil
}

func (r *repo) DeleteArtifact(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(`DELETE FROM artifacts WHERE id = ?`, id).Error
}

func (r *repo) ListArtifacts(ctx context.Context, accountID snowflake.ID, query artifactdomain.ListQuery) ([]artifactdomain.Artifact, error) {
	stmt := `SELECT ` + artifactColumns + ` FROM artifacts WHERE account_id = ?`
	args := []any{accountID}
	if query.BeforeID != 0 {
		stmt += ` AND id < ?`
		args = append(args, query.BeforeID)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, query.Limit)

	var artifacts []artifactdomain.Artifact
	if err := r.db.WithContext(ctx).Raw(stmt, args...).Scan(&artifacts).Error; err != nil {
		return nil, err
	}
	return artifacts, nil
}
