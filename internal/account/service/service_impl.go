package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  accountdomain.Repository
}

type Service struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  accountdomain.Repository
}

func New(p Params) accountdomain.Service {
	return &Service{
		log:   p.Log.Named("account.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req accountdomain.CreateRequest) (*accountdomain.Response, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, accountdomain.ErrInvalidEmail
	}

	role := accountdomain.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		role = accountdomain.Role(strings.ToLower(strings.TrimSpace(req.Role)))
	}
	if !role.Valid() {
		return nil, accountdomain.ErrInvalidRole
	}
	if req.InitialGrant < 0 {
		return nil, accountdomain.ErrInvalidGrant
	}

	now := s.clock.Now()
	account := &accountdomain.Account{
		ID:           s.genID.Generate(),
		Email:        email,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         role,
		TokenBalance: req.InitialGrant,
		InitialGrant: req.InitialGrant,
		Approved:     req.Approved,
		ExpiresAt:    utcPtr(req.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.log.Info("account created",
		zap.String("account_id", account.ID.String()),
		zap.String("role", string(account.Role)),
		zap.Int64("initial_grant", account.InitialGrant),
	)
	return accountdomain.ToResponse(account), nil
}

func (s *Service) Get(ctx context.Context, id string) (*accountdomain.Response, error) {
	accountID, err := accountdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return accountdomain.ToResponse(account), nil
}

func (s *Service) GetAccount(ctx context.Context, id snowflake.ID) (*accountdomain.Account, error) {
	if id <= 0 {
		return nil, accountdomain.ErrInvalidID
	}
	return s.repo.GetAccount(ctx, id)
}

func (s *Service) List(ctx context.Context, req accountdomain.ListRequest) (*accountdomain.ListResponse, error) {
	cursor, err := pagination.DecodeCursor(req.PageToken)
	if err != nil {
		return nil, err
	}

	var after snowflake.ID
	if cursor != nil {
		after, err = accountdomain.ParseID(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	limit := req.Limit()
	items, err := s.repo.ListAccounts(ctx, accountdomain.ListFilter{AfterID: after, Limit: limit + 1})
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.Trim(items, limit, func(a accountdomain.Account) string { return a.ID.String() })
	resp := &accountdomain.ListResponse{
		Accounts: make([]accountdomain.Response, 0, len(items)),
		PageInfo: pageInfo,
	}
	for i := range items {
		resp.Accounts = append(resp.Accounts, *accountdomain.ToResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req accountdomain.UpdateRequest) (*accountdomain.Response, error) {
	accountID, err := accountdomain.ParseID(strings.TrimSpace(req.ID))
	if err != nil {
		return nil, err
	}

	account, err := s.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		account.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Role != nil {
		role := accountdomain.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		if !role.Valid() {
			return nil, accountdomain.ErrInvalidRole
		}
		account.Role = role
	}
	if req.Approved != nil {
		account.Approved = *req.Approved
	}
	switch {
	case req.ClearExpires:
		account.ExpiresAt = nil
	case req.ExpiresAt != nil:
		account.ExpiresAt = utcPtr(req.ExpiresAt)
	}
	account.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateAccountProfile(ctx, account); err != nil {
		return nil, err
	}
	return accountdomain.ToResponse(account), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	accountID, err := accountdomain.ParseID(strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if err := s.repo.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.log.Info("account deleted", zap.String("account_id", accountID.String()))
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
