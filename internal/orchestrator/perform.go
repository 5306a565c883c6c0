package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/alert"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/auth"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/pipeline"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// PerformAction runs one metered action for accountID. Nothing is charged
// unless the pipeline succeeded and, for image actions, the artifact was stored.
func (o *Orchestrator) PerformAction(ctx context.Context, accountID snowflake.ID, spec ActionSpec) (*ActionResult, error) {
	if _, err := auth.RequireAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if err := validate(spec); err != nil {
		return nil, err
	}

	actionID := ulid.MustNew(ulid.Timestamp(o.clock.Now()), ulid.DefaultEntropy()).String()
	ctx = obscontext.WithAction(ctx, actionID, string(spec.Kind))
	if id, _ := obscontext.ActorFromContext(ctx); id == "" {
		ctx = obscontext.WithActor(ctx, accountID.String(), "")
	}
	log := logger.WithContext(ctx, o.log)

	account, err := o.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, accountdomain.ErrNotFound) {
			return nil, ErrAccountInactive
		}
		return nil, err
	}
	if !account.Active(o.clock.Now()) {
		return nil, ErrAccountInactive
	}

	p, err := o.buildPlan(ctx, accountID, spec)
	if err != nil {
		return nil, err
	}

	if !o.authz.Allowed(string(account.Role), p.feature) {
		log.Info("feature not allowed", zap.String("feature", p.feature), zap.String("role", string(account.Role)))
		return nil, ErrFeatureNotAllowed
	}
	if o.ledger.BalancePolicy() == ledgerdomain.BalancePolicyRejectInsufficient && account.TokenBalance <= 0 {
		return nil, ErrInsufficientBalance
	}

	if p.needsSource {
		if p.state, p.parentID, err = o.loadSource(ctx, accountID, spec); err != nil {
			return nil, err
		}
	}

	if p.session != nil {
		release, err := o.limiter.LockSession(ctx, p.session.ID.String())
		if err != nil {
			return nil, err
		}
		defer release()
	}

	run, err := o.executor.RunWithState(ctx, p.state, p.stages...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, err)
	}

	// Past this point the gateway has been paid; a client disconnect must not
	// skip persisting or charging.
	commitCtx := context.WithoutCancel(ctx)

	result := &ActionResult{
		ActionID: actionID,
		Kind:     spec.Kind,
		Cost:     run.Cost,
	}

	if spec.Kind.producesArtifact() {
		return o.commitArtifact(commitCtx, log, account, p, run, result)
	}
	return o.commitChat(commitCtx, log, account, p, run, result)
}

func (o *Orchestrator) commitArtifact(ctx context.Context, log *zap.Logger, account *accountdomain.Account, p *plan, run *pipeline.Result, result *ActionResult) (*ActionResult, error) {
	state := run.State
	if len(state.Image) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrPipelineFailed, pipeline.ErrInvalidOutput)
	}

	key, err := o.assets.Put(ctx, account.ID, p.keyHint, state.Image, state.ContentType)
	if err != nil {
		o.obsMetrics.RecordStorageFailure(ctx, o.assets.Backend())
		log.Error("artifact upload failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	artifact := &artifactdomain.Artifact{
		ID:          o.genID.Generate(),
		AccountID:   account.ID,
		ObjectKey:   key,
		ContentType: state.ContentType,
		SizeBytes:   int64(len(state.Image)),
		Kind:        p.artifactKind,
		Prompt:      p.prompt,
		ParentID:    p.parentID,
		Metadata:    datatypes.JSONMap(p.metadata),
		CreatedAt:   o.clock.Now(),
	}
	if err := o.artifacts.CreateArtifact(ctx, artifact); err != nil {
		o.obsMetrics.RecordStorageFailure(ctx, o.assets.Backend())
		log.Error("artifact insert failed", zap.String("object_key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	result.ArtifactID = artifact.ID.String()

	reference := artifact.ID
	charge, err := o.charge(ctx, log, account, p.feature, run.Cost, &reference, result)
	if err != nil {
		if !errors.Is(err, ErrBilledInconsistency) {
			// refused charges must not leave an unpaid artifact in history
			if delErr := o.artifacts.DeleteArtifact(ctx, artifact.ID); delErr != nil {
				log.Error("unpaid artifact row not removed", zap.String("artifact_id", result.ArtifactID), zap.Error(delErr))
			}
		}
		return nil, err
	}
	result.Balance = charge.Balance

	url, expiresAt, err := o.assets.SignedURL(ctx, key, o.freshTTL)
	if err != nil {
		log.Warn("signed url unavailable", zap.String("artifact_id", result.ArtifactID), zap.Error(err))
		result.Warnings = append(result.Warnings, WarningURLUnavailable)
		return result, nil
	}
	result.URL = url
	result.URLExpiresAt = &expiresAt
	return result, nil
}

func (o *Orchestrator) commitChat(ctx context.Context, log *zap.Logger, account *accountdomain.Account, p *plan, run *pipeline.Result, result *ActionResult) (*ActionResult, error) {
	var reference *snowflake.ID
	if p.session != nil {
		id := p.session.ID
		reference = &id
	}
	charge, err := o.charge(ctx, log, account, p.feature, run.Cost, reference, result)
	if err != nil {
		return nil, err
	}
	result.Balance = charge.Balance
	result.Text = run.State.Text

	session := p.session
	if session == nil {
		session, err = o.history.CreateSession(ctx, account.ID, p.mode)
		if err != nil {
			log.Error("chat session not recorded", zap.Error(err))
			result.Warnings = append(result.Warnings, WarningHistoryNotRecorded)
			return result, nil
		}
	}
	result.SessionID = session.ID.String()
	result.Title = session.Title

	if _, err := o.history.AppendMessage(ctx, session.ID, historydomain.RoleUser, p.message); err != nil {
		log.Error("user message not recorded", zap.String("session_id", result.SessionID), zap.Error(err))
		result.Warnings = append(result.Warnings, WarningHistoryNotRecorded)
		return result, nil
	}
	if _, err := o.history.AppendMessage(ctx, session.ID, historydomain.RoleAssistant, run.State.Text); err != nil {
		log.Error("assistant message not recorded", zap.String("session_id", result.SessionID), zap.Error(err))
		result.Warnings = append(result.Warnings, WarningHistoryNotRecorded)
		return result, nil
	}

	if title := run.State.Outputs[pipeline.OutputTitle]; p.firstTurn && title != "" {
		updated, err := o.history.UpdateTitle(ctx, account.ID, session.ID, title)
		if err != nil {
			log.Warn("session title not recorded", zap.String("session_id", result.SessionID), zap.Error(err))
			result.Warnings = append(result.Warnings, WarningTitleNotRecorded)
			return result, nil
		}
		result.Title = updated.Title
	}
	return result, nil
}

// charge debits the pipeline cost. A policy refusal is returned as insufficient
// balance. An unreachable ledger leaves paid work without a usage record,
// which is reported as a billed inconsistency.
func (o *Orchestrator) charge(ctx context.Context, log *zap.Logger, account *accountdomain.Account, feature string, amount int64, reference *snowflake.ID, result *ActionResult) (*ledgerdomain.ChargeResult, error) {
	charge, err := o.ledger.Charge(ctx, ledgerdomain.ChargeRequest{
		AccountID:   account.ID,
		Amount:      amount,
		Feature:     feature,
		ReferenceID: reference,
	})
	if err == nil {
		log.Info("action charged",
			zap.String("feature", feature),
			zap.Int64("amount", amount),
			zap.Int64("balance", charge.Balance),
		)
		return charge, nil
	}

	if errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		log.Info("charge refused by balance policy",
			zap.String("feature", feature),
			zap.Int64("amount", amount),
			zap.Int64("balance", account.TokenBalance),
		)
		return nil, fmt.Errorf("%w: %w", ErrInsufficientBalance, err)
	}
	if !errors.Is(err, ledgerdomain.ErrLedgerUnavailable) {
		log.Warn("charge rejected after successful pipeline", zap.String("feature", feature), zap.Error(err))
		return nil, err
	}

	log.Error("charge failed after successful pipeline",
		zap.String("feature", feature),
		zap.Int64("amount", amount),
		zap.String("artifact_id", result.ArtifactID),
		zap.Error(err),
	)
	o.obsMetrics.RecordBilledInconsistency(ctx, feature)
	o.alerter.BilledInconsistency(ctx, alert.BilledInconsistency{
		ActionID:   result.ActionID,
		AccountID:  account.ID.String(),
		ArtifactID: result.ArtifactID,
		Feature:    feature,
		Amount:     amount,
		Cause:      err,
	})
	return nil, fmt.Errorf("%w: %w", ErrBilledInconsistency, err)
}
