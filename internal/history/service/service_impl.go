package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultSessionLimit = 50
	maxSessionLimit     = 200
	maxMessageLimit     = 500
)

type Params struct {
	fx.In

	Cfg       config.Config
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Store     historydomain.Store
	Artifacts artifactdomain.Repository
	Assets    assetstore.Store
	Features  *config.FeaturesHolder
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	store      historydomain.Store
	artifacts  artifactdomain.Repository
	assets     assetstore.Store
	features   *config.FeaturesHolder
	historyTTL time.Duration
}

func NewService(p Params) historydomain.Service {
	return &Service{
		log:        p.Log.Named("history.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		store:      p.Store,
		artifacts:  p.Artifacts,
		assets:     p.Assets,
		features:   p.Features,
		historyTTL: p.Cfg.Assets.HistoryTTL,
	}
}

func (s *Service) CreateSession(ctx context.Context, accountID snowflake.ID, mode historydomain.Mode) (*historydomain.Session, error) {
	if accountID <= 0 {
		return nil, historydomain.ErrAccessDenied
	}
	if mode == "" {
		mode = historydomain.ModeStandard
	}
	if !mode.Valid() {
		return nil, historydomain.ErrInvalidMode
	}

	now := s.clock.Now()
	session := &historydomain.Session{
		ID:             s.genID.Generate(),
		AccountID:      accountID,
		Mode:           mode,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, accountID, sessionID snowflake.ID) (*historydomain.Session, error) {
	return s.ownedSession(ctx, accountID, sessionID)
}

func (s *Service) ListSessions(ctx context.Context, accountID snowflake.ID, limit int) ([]historydomain.Session, error) {
	if accountID <= 0 {
		return nil, historydomain.ErrAccessDenied
	}
	return s.store.ListSessions(ctx, accountID, clamp(limit, defaultSessionLimit, maxSessionLimit))
}

func (s *Service) AppendMessage(ctx context.Context, sessionID snowflake.ID, role historydomain.MessageRole, content string) (*historydomain.Message, error) {
	if sessionID <= 0 {
		return nil, historydomain.ErrInvalidSession
	}
	if !role.Valid() {
		return nil, historydomain.ErrInvalidRole
	}
	if strings.TrimSpace(content) == "" {
		return nil, historydomain.ErrEmptyContent
	}

	msg := &historydomain.Message{
		ID:        s.genID.Generate(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) ListMessages(ctx context.Context, accountID, sessionID snowflake.ID, limit int) ([]historydomain.Message, error) {
	if _, err := s.ownedSession(ctx, accountID, sessionID); err != nil {
		return nil, err
	}
	window := s.features.Get().ChatHistoryWindow
	return s.store.ListRecentMessages(ctx, sessionID, clamp(limit, window, maxMessageLimit))
}

func (s *Service) UpdateTitle(ctx context.Context, accountID, sessionID snowflake.ID, title string) (*historydomain.Session, error) {
	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return nil, err
	}

	title = strings.TrimSpace(title)
	if maxLen := s.features.Get().TitleMaxLength; maxLen > 0 && len([]rune(title)) > maxLen {
		title = string([]rune(title)[:maxLen])
	}
	if err := s.store.UpdateSessionTitle(ctx, sessionID, title); err != nil {
		return nil, err
	}
	session.Title = title
	return session, nil
}

func (s *Service) DeleteSession(ctx context.Context, accountID, sessionID snowflake.ID) error {
	if _, err := s.ownedSession(ctx, accountID, sessionID); err != nil {
		return err
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	logger.WithContext(ctx, s.log).Info("chat session deleted",
		zap.String("session_id", sessionID.String()),
	)
	return nil
}

func (s *Service) ListImages(ctx context.Context, req historydomain.ListImagesRequest) (*historydomain.ListImagesResponse, error) {
	if req.AccountID <= 0 {
		return nil, historydomain.ErrAccessDenied
	}
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}
	var before snowflake.ID
	if cursor != nil {
		before, err = snowflake.ParseString(cursor.ID)
		if err != nil || before <= 0 {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.artifacts.ListArtifacts(ctx, req.AccountID, artifactdomain.ListQuery{BeforeID: before, Limit: limit + 1})
	if err != nil {
		return nil, err
	}
	items, pageInfo := pagination.Trim(items, limit, func(a artifactdomain.Artifact) string { return a.ID.String() })

	resp := &historydomain.ListImagesResponse{
		Images:   make([]historydomain.ImageEntry, 0, len(items)),
		PageInfo: pageInfo,
	}
	for _, a := range items {
		url, expiresAt, err := s.assets.SignedURL(ctx, a.ObjectKey, s.historyTTL)
		if err != nil {
			return nil, err
		}
		resp.Images = append(resp.Images, historydomain.ToImageEntry(a, url, expiresAt))
	}
	return resp, nil
}

func (s *Service) ownedSession(ctx context.Context, accountID, sessionID snowflake.ID) (*historydomain.Session, error) {
	if sessionID <= 0 {
		return nil, historydomain.ErrInvalidSession
	}
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.AccountID != accountID {
		return nil, historydomain.ErrAccessDenied
	}
	return session, nil
}

func clamp(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, ceiling)
}
