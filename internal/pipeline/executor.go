package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/gateway"
	"github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Clock      clock.Clock
	Features   *config.FeaturesHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Executor struct {
	log            *zap.Logger
	clock          clock.Clock
	features       *config.FeaturesHolder
	defaultTimeout time.Duration
	obsMetrics     *obsmetrics.Metrics
	tracer         trace.Tracer
}

func NewExecutor(p Params) *Executor {
	timeout := p.Cfg.Gateway.StageTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Executor{
		log:            p.Log.Named("pipeline.executor"),
		clock:          p.Clock,
		features:       p.Features,
		defaultTimeout: timeout,
		obsMetrics:     p.ObsMetrics,
		tracer:         otel.Tracer("atelier/pipeline"),
	}
}

type outcome struct {
	cost  int64
	state *State
	err   error
}

// Run executes stages in order, halting on the first failure. Gateway calls are
// detached from ctx cancellation and bounded only by the stage timeout; a result
// that arrives after ctx is done is discarded.
func (e *Executor) Run(ctx context.Context, stages ...Stage) (*Result, error) {
	return e.RunWithState(ctx, NewState(), stages...)
}

func (e *Executor) RunWithState(ctx context.Context, state *State, stages ...Stage) (*Result, error) {
	if state == nil {
		state = NewState()
	}
	result := &Result{State: state, Stages: make([]StageReport, 0, len(stages))}
	log := logger.WithContext(ctx, e.log)

	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(ctx, log, stage, i, ReasonCanceled, result.Cost, err)
		}

		timeout := stage.Timeout
		if timeout <= 0 {
			timeout = e.features.Get().StageTimeout(stage.Name, e.defaultTimeout)
		}

		started := e.clock.Now()
		out := e.runStage(ctx, stage, i, result.State, timeout)

		if err := ctx.Err(); err != nil {
			return nil, e.fail(ctx, log, stage, i, ReasonCanceled, result.Cost, err)
		}
		if out.err != nil {
			return nil, e.fail(ctx, log, stage, i, classify(out.err), result.Cost, out.err)
		}
		if out.cost < 0 {
			return nil, e.fail(ctx, log, stage, i, ReasonInvalidOutput, result.Cost, ErrInvalidOutput)
		}

		result.State = out.state
		result.Cost += out.cost
		result.Stages = append(result.Stages, StageReport{
			Name:     stage.Name,
			Cost:     out.cost,
			Duration: e.clock.Now().Sub(started),
		})
	}

	log.Debug("pipeline completed",
		zap.Int("stages", len(stages)),
		zap.Int64("cost", result.Cost),
	)
	return result, nil
}

func (e *Executor) runStage(ctx context.Context, stage Stage, index int, state *State, timeout time.Duration) outcome {
	stageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	stageCtx, span := e.tracer.Start(stageCtx, "pipeline.stage",
		trace.WithAttributes(
			attribute.String("pipeline.stage", stage.Name),
			attribute.Int("pipeline.index", index),
		),
	)
	defer span.End()

	if stage.Run == nil {
		return outcome{err: ErrInvalidOutput}
	}

	working := state.clone()
	done := make(chan outcome, 1)
	go func() {
		cost, err := stage.Run(stageCtx, working)
		done <- outcome{cost: cost, state: working, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-stageCtx.Done():
		out = outcome{err: stageCtx.Err()}
	}
	if out.err != nil {
		span.SetStatus(codes.Error, out.err.Error())
	} else {
		span.SetAttributes(attribute.Int64("pipeline.cost", out.cost))
	}
	return out
}

func (e *Executor) fail(ctx context.Context, log *zap.Logger, stage Stage, index int, reason Reason, accrued int64, err error) error {
	e.obsMetrics.RecordPipelineFailure(ctx, stage.Name, string(reason))
	log.Warn("pipeline stage failed",
		zap.String("stage", stage.Name),
		zap.Int("index", index),
		zap.String("reason", string(reason)),
		zap.Int64("accrued_cost", accrued),
		zap.Error(err),
	)
	return &StageError{
		Stage:       stage.Name,
		Index:       index,
		Reason:      reason,
		AccruedCost: accrued,
		Err:         err,
	}
}

func classify(err error) Reason {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, gateway.ErrRateLimited):
		return ReasonRateLimited
	case errors.Is(err, gateway.ErrAccessDenied):
		return ReasonAccessDenied
	case errors.Is(err, gateway.ErrBadResponse), errors.Is(err, ErrInvalidOutput):
		return ReasonInvalidOutput
	default:
		return ReasonUnavailable
	}
}
