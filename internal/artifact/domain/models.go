package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Kind string

const (
	KindResearchImage  Kind = "research_image"
	KindImageEdit      Kind = "image_edit"
	KindStyleTransform Kind = "style_transform"
)

func (k Kind) Valid() bool {
	switch k {
	case KindResearchImage, KindImageEdit, KindStyleTransform:
		return true
	default:
		return false
	}
}

// Artifact is a generated binary persisted in the asset store.
// ObjectKey is internal and never serialized to clients.
type Artifact struct {
	ID          snowflake.ID      `json:"id" gorm:"primaryKey;autoIncrement:false"`
	AccountID   snowflake.ID      `json:"account_id" gorm:"not null;index:ix_artifacts_account"`
	ObjectKey   string            `json:"-" gorm:"size:512;not null;uniqueIndex"`
	ContentType string            `json:"content_type" gorm:"size:128;not null"`
	SizeBytes   int64             `json:"size_bytes" gorm:"not null"`
	Kind        Kind              `json:"kind" gorm:"size:32;not null"`
	Prompt      string            `json:"prompt" gorm:"type:text"`
	ParentID    *snowflake.ID     `json:"parent_id,omitempty"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:json"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null"`
}

func (Artifact) TableName() string { return "artifacts" }

var (
	ErrNotFound    = errors.New("artifact_not_found")
	ErrInvalidKind = errors.New("invalid_artifact_kind")
)
