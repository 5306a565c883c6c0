package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
)

type Service interface {
	CreateSession(ctx context.Context, accountID snowflake.ID, mode Mode) (*Session, error)
	GetSession(ctx context.Context, accountID, sessionID snowflake.ID) (*Session, error)
	ListSessions(ctx context.Context, accountID snowflake.ID, limit int) ([]Session, error)
	AppendMessage(ctx context.Context, sessionID snowflake.ID, role MessageRole, content string) (*Message, error)
	ListMessages(ctx context.Context, accountID, sessionID snowflake.ID, limit int) ([]Message, error)
	UpdateTitle(ctx context.Context, accountID, sessionID snowflake.ID, title string) (*Session, error)
	DeleteSession(ctx context.Context, accountID, sessionID snowflake.ID) error
	ListImages(ctx context.Context, req ListImagesRequest) (*ListImagesResponse, error)
}

type ListImagesRequest struct {
	AccountID snowflake.ID
	pagination.Pagination
}

type ImageEntry struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"`
	Prompt       string         `json:"prompt"`
	ContentType  string         `json:"content_type"`
	SizeBytes    int64          `json:"size_bytes"`
	ParentID     string         `json:"parent_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	URL          string         `json:"url"`
	URLExpiresAt time.Time      `json:"url_expires_at"`
	CreatedAt    time.Time      `json:"created_at"`
}

type ListImagesResponse struct {
	Images   []ImageEntry        `json:"images"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

var (
	ErrInvalidSession  = errors.New("invalid_session")
	ErrInvalidMode     = errors.New("invalid_mode")
	ErrInvalidRole     = errors.New("invalid_message_role")
	ErrEmptyContent    = errors.New("empty_content")
	ErrSessionNotFound = errors.New("session_not_found")
	ErrAccessDenied    = errors.New("access_denied")
)

func ToImageEntry(a artifactdomain.Artifact, url string, expiresAt time.Time) ImageEntry {
	entry := ImageEntry{
		ID:           a.ID.String(),
		Kind:         string(a.Kind),
		Prompt:       a.Prompt,
		ContentType:  a.ContentType,
		SizeBytes:    a.SizeBytes,
		Metadata:     a.Metadata,
		URL:          url,
		URLExpiresAt: expiresAt,
		CreatedAt:    a.CreatedAt,
	}
	if a.ParentID != nil {
		entry.ParentID = a.ParentID.String()
	}
	return entry
}
