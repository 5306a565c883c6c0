package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	obscontext "github.com/smallbiznis/atelier/internal/observability/context"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	"github.com/smallbiznis/atelier/internal/providers/slack"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const deliveryTimeout = 5 * time.Second

var Module = fx.Module("alert",
	fx.Provide(New),
)

// BilledInconsistency describes an artifact that was stored without a committed charge.
type BilledInconsistency struct {
	ActionID   string
	AccountID  string
	ArtifactID string
	Feature    string
	Amount     int64
	Cause      error
}

type Alerter interface {
	BilledInconsistency(ctx context.Context, incident BilledInconsistency)
}

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Slack slack.Provider
}

type Service struct {
	log     *zap.Logger
	slack   slack.Provider
	channel string
}

func New(p Params) Alerter {
	return &Service{
		log:     p.Log.Named("alert"),
		slack:   p.Slack,
		channel: p.Cfg.Alert.SlackChannel,
	}
}

// BilledInconsistency logs the incident and forwards it to Slack. Delivery
// runs detached from the request so a disconnect does not drop the alert.
func (s *Service) BilledInconsistency(ctx context.Context, incident BilledInconsistency) {
	log := logger.WithContext(ctx, s.log)
	if id, _ := obscontext.ActionFromContext(ctx); id == "" {
		log = log.With(zap.String("action_id", incident.ActionID))
	}
	log.Error("billed inconsistency",
		zap.String("account_id", incident.AccountID),
		zap.String("artifact_id", incident.ArtifactID),
		zap.String("feature", incident.Feature),
		zap.Int64("amount", incident.Amount),
		zap.Error(incident.Cause),
	)

	if s.slack == nil {
		return
	}
	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deliveryTimeout)
	defer cancel()
	if err := s.slack.PostMessage(deliverCtx, s.channel, formatBilledInconsistency(incident)); err != nil {
		log.Warn("alert delivery failed", zap.Error(err))
	}
}

func formatBilledInconsistency(i BilledInconsistency) string {
	cause := "unknown"
	if i.Cause != nil {
		cause = i.Cause.Error()
	}
	return fmt.Sprintf(
		":warning: uncharged artifact\naction `%s` account `%s` artifact `%s`\nfeature %s, %d tokens not debited\ncause: %s",
		i.ActionID, i.AccountID, i.ArtifactID, i.Feature, i.Amount, cause,
	)
}
