package orchestrator

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	"github.com/smallbiznis/atelier/internal/alert"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/authorization"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/gateway"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/pipeline"
	"github.com/smallbiznis/atelier/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Kind string

const (
	KindResearchImage  Kind = "research_image"
	KindImageEdit      Kind = "image_edit"
	KindStyleTransform Kind = "style_transform"
	KindChatTurn       Kind = "chat_turn"
)

func (k Kind) producesArtifact() bool {
	return k == KindResearchImage || k == KindImageEdit || k == KindStyleTransform
}

const (
	WarningHistoryNotRecorded = "history_not_recorded"
	WarningTitleNotRecorded   = "title_not_recorded"
	WarningURLUnavailable     = "url_unavailable"
)

var (
	ErrInvalidAction       = errors.New("invalid_action")
	ErrAccountInactive     = errors.New("account_inactive")
	ErrFeatureNotAllowed   = errors.New("feature_not_allowed")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrPipelineFailed      = errors.New("pipeline_failed")
	ErrStorageFailure      = errors.New("storage_failure")
	ErrBilledInconsistency = errors.New("billed_inconsistency")
)

// ActionSpec describes one user action. Only the fields relevant to Kind are read.
type ActionSpec struct {
	Kind Kind   `json:"kind"`
	Size string `json:"size,omitempty"`

	// research_image
	Topic  string `json:"topic,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// image_edit and style_transform take either an owned artifact or uploaded bytes.
	SourceArtifactID  snowflake.ID `json:"source_artifact_id,omitempty"`
	SourceImage       []byte       `json:"source_image,omitempty"`
	SourceContentType string       `json:"source_content_type,omitempty"`
	Instruction       string       `json:"instruction,omitempty"`
	Style             string       `json:"style,omitempty"`

	// chat_turn; a zero SessionID opens a new session in Mode.
	SessionID snowflake.ID       `json:"session_id,omitempty"`
	Mode      historydomain.Mode `json:"mode,omitempty"`
	Message   string             `json:"message,omitempty"`
}

type ActionResult struct {
	ActionID     string     `json:"action_id"`
	Kind         Kind       `json:"kind"`
	ArtifactID   string     `json:"artifact_id,omitempty"`
	URL          string     `json:"url,omitempty"`
	URLExpiresAt *time.Time `json:"url_expires_at,omitempty"`
	Text         string     `json:"text,omitempty"`
	SessionID    string     `json:"session_id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Cost         int64      `json:"cost"`
	Balance      int64      `json:"balance"`
	Warnings     []string   `json:"warnings,omitempty"`
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	GenID      *snowflake.Node
	Features   *config.FeaturesHolder
	Gateway    gateway.Gateway
	Executor   *pipeline.Executor
	Accounts   accountdomain.Service
	Ledger     ledgerdomain.Service
	Artifacts  artifactdomain.Repository
	Assets     assetstore.Store
	History    historydomain.Service
	Authz      authorization.Service
	Alerter    alert.Alerter
	Limiter    *ratelimit.ActionLimiter `optional:"true"`
	ObsMetrics *obsmetrics.Metrics      `optional:"true"`
}

// Orchestrator runs a user action end to end: authorize, run the pipeline,
// persist the artifact, charge once, then record history.
type Orchestrator struct {
	log        *zap.Logger
	clock      clock.Clock
	genID      *snowflake.Node
	features   *config.FeaturesHolder
	gateway    gateway.Gateway
	executor   *pipeline.Executor
	accounts   accountdomain.Service
	ledger     ledgerdomain.Service
	artifacts  artifactdomain.Repository
	assets     assetstore.Store
	history    historydomain.Service
	authz      authorization.Service
	alerter    alert.Alerter
	limiter    *ratelimit.ActionLimiter
	obsMetrics *obsmetrics.Metrics

	freshTTL time.Duration
}

func New(p Params) *Orchestrator {
	ttl := p.Cfg.Assets.FreshTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Orchestrator{
		log:        p.Log.Named("orchestrator"),
		clock:      p.Clock,
		genID:      p.GenID,
		features:   p.Features,
		gateway:    p.Gateway,
		executor:   p.Executor,
		accounts:   p.Accounts,
		ledger:     p.Ledger,
		artifacts:  p.Artifacts,
		assets:     p.Assets,
		history:    p.History,
		authz:      p.Authz,
		alerter:    p.Alerter,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
		freshTTL:   ttl,
	}
}
