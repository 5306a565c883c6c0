package ratelimit

import (
	"context"
	"errors"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/atelier/internal/config"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	keyActionAccount = "atelier:actions:account:%s"
	keyChatSession   = "atelier:chat:session:%s"
)

var (
	ErrRateLimited = errors.New("rate_limited")
	ErrSessionBusy = errors.New("session_busy")
)

type Params struct {
	fx.In

	Lc         fx.Lifecycle
	Cfg        config.Config
	Log        *zap.Logger
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

// ActionLimiter throttles actions per account and serializes chat turns per
// session. A disabled limiter allows everything.
type ActionLimiter struct {
	enabled bool
	log     *zap.Logger

	bucket   *actionBucket
	sessions *sessionLocks
	metrics  *obsmetrics.Metrics
}

func NewActionLimiter(p Params) (*ActionLimiter, error) {
	log := p.Log.Named("ratelimit")
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		log.Info("action rate limiting disabled")
		return &ActionLimiter{log: log}, nil
	}

	addr := strings.TrimSpace(p.Cfg.Redis.Addr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: p.Cfg.Redis.Password,
		DB:       p.Cfg.Redis.DB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	limiter, err := newActionLimiter(client, limitCfg, log)
	if err != nil {
		return nil, err
	}
	limiter.metrics = p.ObsMetrics
	return limiter, nil
}

func newActionLimiter(client *redis.Client, cfg config.RateLimitConfig, log *zap.Logger) (*ActionLimiter, error) {
	bucket, err := newActionBucket(client, cfg.ActionsPerMinute, cfg.Burst)
	if err != nil {
		return nil, err
	}
	sessions, err := newSessionLocks(client, cfg.SessionLockTTL)
	if err != nil {
		return nil, err
	}
	return &ActionLimiter{
		enabled:  true,
		log:      log,
		bucket:   bucket,
		sessions: sessions,
	}, nil
}

func (l *ActionLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// AllowAction consumes one token from the account's bucket. Redis failures
// fail open so an outage of the limiter never blocks paid work.
func (l *ActionLimiter) AllowAction(ctx context.Context, accountID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}

	res, err := l.bucket.take(ctx, accountID)
	if err != nil {
		l.log.Warn("rate limiter unavailable, allowing action",
			zap.String("account_id", accountID),
			zap.Error(err),
		)
		return &RateLimitResult{Allowed: true}, nil
	}
	if !res.Allowed {
		l.metrics.RecordRateLimitDenied(ctx, "actions", "account")
		return res, ErrRateLimited
	}
	l.metrics.RecordRateLimitAllowed(ctx, "actions")
	return res, nil
}

// LockSession takes the per-session chat lock. The returned release func is
// always safe to call.
func (l *ActionLimiter) LockSession(ctx context.Context, sessionID string) (func(), error) {
	noop := func() {}
	if !l.Enabled() {
		return noop, nil
	}

	lease, err := l.sessions.acquire(ctx, sessionID)
	if errors.Is(err, ErrSessionBusy) {
		l.metrics.RecordRateLimitDenied(ctx, "chat", "session_busy")
		return noop, err
	}
	if err != nil {
		l.log.Warn("session lock unavailable, continuing unlocked",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		return noop, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := l.sessions.release(releaseCtx, lease); err != nil {
			l.log.Warn("session lock release failed", zap.String("session_id", sessionID), zap.Error(err))
		}
	}, nil
}
