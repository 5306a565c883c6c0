package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/clock"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobReconcile = "ledger_reconcile"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log        *zap.Logger
	Accounts   accountdomain.Service
	Ledger     ledgerdomain.Service
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config              `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// Scheduler periodically walks every account and reports ledger drift.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	accounts accountdomain.Service
	ledger   ledgerdomain.Service
	metrics  *obsmetrics.Metrics
}

// ReconcileReport summarizes one sweep.
type ReconcileReport struct {
	Checked  int
	Drifted  []ledgerdomain.Reconciliation
	Failures int
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Accounts == nil || p.Ledger == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		accounts: p.Accounts,
		ledger:   p.Ledger,
		metrics:  p.ObsMetrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	log := s.log.With(
		zap.String("job", name),
		zap.String("run_id", s.genID.Generate().String()),
	)
	log.Debug("job started")

	err := fn(ctx)
	s.metrics.RecordJobRun(ctx, name, err != nil)
	if err == nil {
		log.Debug("job finished", zap.Duration("elapsed", s.clock.Now().Sub(start)))
		return nil
	}

	// deadline is a soft timeout; the next tick resumes from the first page
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	return s.runJob(parent, jobReconcile, s.cfg.JobTimeout, func(ctx context.Context) error {
		_, err := s.ReconcileAll(ctx)
		return err
	})
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ReconcileAll pages through every account and checks balance == grant + Σ deltas.
// A failure on one account is logged and counted; the sweep continues.
func (s *Scheduler) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	log := logger.WithContext(ctx, s.log)
	report := &ReconcileReport{}
	page := pagination.Pagination{PageSize: s.cfg.BatchSize}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		resp, err := s.accounts.List(ctx, accountdomain.ListRequest{Pagination: page})
		if err != nil {
			return report, err
		}

		for _, account := range resp.Accounts {
			id, err := accountdomain.ParseID(account.ID)
			if err != nil {
				report.Failures++
				continue
			}
			recon, err := s.ledger.Reconcile(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Failures++
				log.Warn("reconcile account failed", zap.String("account_id", account.ID), zap.Error(err))
				continue
			}
			report.Checked++
			if !recon.Consistent {
				report.Drifted = append(report.Drifted, *recon)
				s.metrics.RecordLedgerDrift(ctx)
			}
		}

		if !resp.PageInfo.HasMore || resp.PageInfo.NextPageToken == "" {
			break
		}
		page.PageToken = resp.PageInfo.NextPageToken
	}

	if len(report.Drifted) > 0 || report.Failures > 0 {
		log.Warn("ledger reconciliation found problems",
			zap.Int("checked", report.Checked),
			zap.Int("drifted", len(report.Drifted)),
			zap.Int("failures", report.Failures),
		)
	} else {
		log.Info("ledger reconciliation clean", zap.Int("checked", report.Checked))
	}
	return report, nil
}
