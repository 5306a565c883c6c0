package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Store      ledgerdomain.Store
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	store      ledgerdomain.Store
	obsMetrics *obsmetrics.Metrics

	policy  ledgerdomain.BalancePolicy
	logging ledgerdomain.AdjustmentLogging
}

func NewService(p Params) (ledgerdomain.Service, error) {
	policy, err := ledgerdomain.ParseBalancePolicy(p.Cfg.Ledger.BalancePolicy)
	if err != nil {
		return nil, err
	}
	logging, err := ledgerdomain.ParseAdjustmentLogging(p.Cfg.Ledger.AdjustmentLogging)
	if err != nil {
		return nil, err
	}
	return &Service{
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		store:      p.Store,
		obsMetrics: p.ObsMetrics,
		policy:     policy,
		logging:    logging,
	}, nil
}

func (s *Service) BalancePolicy() ledgerdomain.BalancePolicy {
	return s.policy
}

func (s *Service) Charge(ctx context.Context, req ledgerdomain.ChargeRequest) (*ledgerdomain.ChargeResult, error) {
	if req.AccountID <= 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	if req.Amount < 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	feature := strings.TrimSpace(req.Feature)
	if feature == "" {
		return nil, ledgerdomain.ErrInvalidFeature
	}

	record := ledgerdomain.UsageRecord{
		ID:          s.genID.Generate(),
		AccountID:   req.AccountID,
		Feature:     feature,
		Delta:       -req.Amount,
		ReferenceID: req.ReferenceID,
		CreatedAt:   s.clock.Now(),
	}

	balance, err := s.store.ApplyCharge(ctx, ledgerdomain.ChargeEntry{
		Record:            record,
		RequireSufficient: s.policy == ledgerdomain.BalancePolicyRejectInsufficient,
	})
	if err != nil {
		return nil, s.mapStoreErr(ctx, "charge", req.AccountID, err)
	}

	s.obsMetrics.RecordCharge(ctx, feature, req.Amount)
	if balance < 0 {
		s.obsMetrics.RecordNegativeBalance(ctx, feature)
		logger.WithContext(ctx, s.log).Warn("account balance went negative",
			zap.String("account_id", req.AccountID.String()),
			zap.String("feature", feature),
			zap.Int64("amount", req.Amount),
			zap.Int64("balance", balance),
		)
	}

	return &ledgerdomain.ChargeResult{Balance: balance, Record: record}, nil
}

func (s *Service) Adjust(ctx context.Context, req ledgerdomain.AdjustRequest) (*ledgerdomain.AdjustResult, error) {
	if !req.ActorIsAdmin {
		return nil, ledgerdomain.ErrForbidden
	}
	if req.AccountID <= 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	if req.NewBalance < 0 && s.policy == ledgerdomain.BalancePolicyRejectInsufficient {
		return nil, ledgerdomain.ErrInsufficientBalance
	}

	outcome, err := s.store.ApplyAdjustment(ctx, ledgerdomain.AdjustmentEntry{
		AccountID:  req.AccountID,
		NewBalance: req.NewBalance,
		Logging:    s.logging,
		Record: ledgerdomain.UsageRecord{
			ID:        s.genID.Generate(),
			Feature:   ledgerdomain.LabelAdministrativeAdjustment,
			CreatedAt: s.clock.Now(),
		},
	})
	if err != nil {
		return nil, s.mapStoreErr(ctx, "adjust", req.AccountID, err)
	}

	s.obsMetrics.RecordAdjustment(ctx, direction(outcome.Delta))
	logger.WithContext(ctx, s.log).Info("balance adjusted",
		zap.String("account_id", req.AccountID.String()),
		zap.Int64("previous_balance", outcome.PreviousBalance),
		zap.Int64("balance", outcome.Balance),
		zap.Int64("delta", outcome.Delta),
		zap.Bool("recorded", outcome.Record != nil),
	)

	return &ledgerdomain.AdjustResult{
		PreviousBalance: outcome.PreviousBalance,
		Balance:         outcome.Balance,
		Delta:           outcome.Delta,
		Record:          outcome.Record,
	}, nil
}

func (s *Service) ListUsage(ctx context.Context, req ledgerdomain.ListUsageRequest) (*ledgerdomain.ListUsageResponse, error) {
	if req.AccountID <= 0 {
		return nil, ledgerdomain.ErrInvalidAccount
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
	records, err := s.store.ListUsage(ctx, req.AccountID, ledgerdomain.UsageQuery{BeforeID: before, Limit: limit + 1})
	if err != nil {
		return nil, s.mapStoreErr(ctx, "list_usage", req.AccountID, err)
	}

	records, pageInfo := pagination.Trim(records, limit, func(r ledgerdomain.UsageRecord) string { return r.ID.String() })
	resp := &ledgerdomain.ListUsageResponse{
		Records:  make([]ledgerdomain.UsageRecordResponse, 0, len(records)),
		PageInfo: pageInfo,
	}
	for _, r := range records {
		resp.Records = append(resp.Records, ledgerdomain.ToUsageResponse(r))
	}
	return resp, nil
}

func (s *Service) Reconcile(ctx context.Context, accountID snowflake.ID) (*ledgerdomain.Reconciliation, error) {
	if accountID <= 0 {
		return nil, ledgerdomain.ErrInvalidAccount
	}
	summary, err := s.store.Summarize(ctx, accountID)
	if err != nil {
		return nil, s.mapStoreErr(ctx, "reconcile", accountID, err)
	}

	drift := summary.Balance - (summary.InitialGrant + summary.UsageTotal)
	if drift != 0 {
		logger.WithContext(ctx, s.log).Warn("ledger drift detected",
			zap.String("account_id", accountID.String()),
			zap.Int64("drift", drift),
			zap.String("adjustment_logging", string(s.logging)),
		)
	}
	return &ledgerdomain.Reconciliation{
		AccountID:    accountID.String(),
		Balance:      summary.Balance,
		InitialGrant: summary.InitialGrant,
		UsageTotal:   summary.UsageTotal,
		RecordCount:  summary.RecordCount,
		Drift:        drift,
		Consistent:   drift == 0,
	}, nil
}

func (s *Service) mapStoreErr(ctx context.Context, op string, accountID snowflake.ID, err error) error {
	switch {
	case errors.Is(err, ledgerdomain.ErrAccountNotFound),
		errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ledgerdomain.ErrLedgerUnavailable, err)
	}
	logger.WithContext(ctx, s.log).Error("ledger store failed",
		zap.String("op", op),
		zap.String("account_id", accountID.String()),
		zap.Error(err),
	)
	return fmt.Errorf("%w: %v", ledgerdomain.ErrLedgerUnavailable, err)
}

func direction(delta int64) string {
	switch {
	case delta > 0:
		return "credit"
	case delta < 0:
		return "debit"
	default:
		return "none"
	}
}
