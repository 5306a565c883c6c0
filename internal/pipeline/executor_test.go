package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/gateway"
	"github.com/smallbiznis/atelier/internal/gateway/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newExecutor(t *testing.T, stageTimeout time.Duration, features config.FeaturesConfig) *Executor {
	t.Helper()
	cfg := config.Config{Gateway: config.GatewayConfig{StageTimeout: stageTimeout}}
	return NewExecutor(Params{
		Cfg:      cfg,
		Log:      zap.NewNop(),
		Clock:    clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		Features: config.NewStaticFeaturesHolder(features),
	})
}

func TestRunAccumulatesCostAcrossStages(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	gw.EXPECT().Research(gomock.Any(), gateway.ResearchRequest{Topic: "lighthouses"}).
		Return(&gateway.TextResult{Text: "tall, coastal", Cost: 40}, nil)
	gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.SynthesizeRequest) (*gateway.ImageResult, error) {
			assert.Contains(t, req.Prompt, "tall, coastal")
			return &gateway.ImageResult{Image: []byte("png"), ContentType: "image/png", Cost: 110}, nil
		})

	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	res, err := exec.Run(context.Background(),
		Research(gw, "lighthouses"),
		Synthesize(gw, "a lighthouse", "1024x1024"),
	)
	require.NoError(t, err)
	assert.EqualValues(t, 150, res.Cost)
	assert.Equal(t, []byte("png"), res.State.Image)
	require.Len(t, res.Stages, 2)
	assert.Equal(t, StageResearch, res.Stages[0].Name)
	assert.EqualValues(t, 110, res.Stages[1].Cost)
}

func TestRunShortCircuitsOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	gw.EXPECT().Research(gomock.Any(), gomock.Any()).
		Return(&gateway.TextResult{Text: "notes", Cost: 40}, nil)
	gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).
		Return(nil, gateway.ErrRateLimited)

	var ran atomic.Bool
	third := Stage{Name: "never", Run: func(context.Context, *State) (int64, error) {
		ran.Store(true)
		return 0, nil
	}}

	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	res, err := exec.Run(context.Background(),
		Research(gw, "topic"),
		Synthesize(gw, "prompt", ""),
		third,
	)
	require.Error(t, err)
	assert.Nil(t, res)

	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, StageSynthesize, se.Stage)
	assert.Equal(t, 1, se.Index)
	assert.Equal(t, ReasonRateLimited, se.Reason)
	assert.EqualValues(t, 40, se.AccruedCost)
	assert.ErrorIs(t, err, gateway.ErrRateLimited)
	assert.False(t, ran.Load())
}

func TestRunClassifiesGatewayErrors(t *testing.T) {
	cases := map[error]Reason{
		gateway.ErrAccessDenied:        ReasonAccessDenied,
		gateway.ErrUnavailable:         ReasonUnavailable,
		gateway.ErrBadResponse:         ReasonInvalidOutput,
		errors.New("connection reset"): ReasonUnavailable,
		context.DeadlineExceeded:       ReasonTimeout,
		ErrInvalidOutput:               ReasonInvalidOutput,
	}
	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	for cause, want := range cases {
		stage := Stage{Name: "s", Run: func(context.Context, *State) (int64, error) { return 0, cause }}
		_, err := exec.Run(context.Background(), stage)
		se, ok := AsStageError(err)
		require.True(t, ok)
		assert.Equal(t, want, se.Reason, cause.Error())
	}
}

func TestRunEnforcesStageTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	slow := Stage{Name: StageChat, Run: func(ctx context.Context, st *State) (int64, error) {
		<-release
		return 10, nil
	}}

	exec := newExecutor(t, 20*time.Millisecond, config.DefaultFeaturesConfig())
	_, err := exec.Run(context.Background(), slow)

	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, se.Reason)
	assert.EqualValues(t, 0, se.AccruedCost)
}

func TestRunUsesPerStageOverride(t *testing.T) {
	features := config.DefaultFeaturesConfig()
	features.StageTimeouts = map[string]time.Duration{StageChat: 10 * time.Millisecond}

	slow := Stage{Name: StageChat, Run: func(ctx context.Context, st *State) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}}

	exec := newExecutor(t, time.Minute, features)
	started := time.Now()
	_, err := exec.Run(context.Background(), slow)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonTimeout, se.Reason)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestRunDetachesGatewayFromCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var stageErr error

	stage := Stage{Name: StageEdit, Run: func(stageCtx context.Context, st *State) (int64, error) {
		cancel()
		stageErr = stageCtx.Err()
		return 25, nil
	}}

	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	_, err := exec.Run(ctx, stage)

	assert.NoError(t, stageErr)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonCanceled, se.Reason)
	assert.EqualValues(t, 0, se.AccruedCost)
}

func TestRunRejectsAlreadyCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	stage := Stage{Name: StageResearch, Run: func(context.Context, *State) (int64, error) {
		ran.Store(true)
		return 0, nil
	}}
	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	_, err := exec.Run(ctx, stage)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonCanceled, se.Reason)
	assert.False(t, ran.Load())
}

func TestRunRejectsNegativeCost(t *testing.T) {
	stage := Stage{Name: "s", Run: func(context.Context, *State) (int64, error) { return -5, nil }}
	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	_, err := exec.Run(context.Background(), stage)
	se, ok := AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, ReasonInvalidOutput, se.Reason)
}

func TestFailedStageDoesNotLeakStateChanges(t *testing.T) {
	state := NewState()
	state.Text = "original"
	stage := Stage{Name: "s", Run: func(_ context.Context, st *State) (int64, error) {
		st.Text = "mutated"
		return 0, gateway.ErrUnavailable
	}}
	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	_, err := exec.RunWithState(context.Background(), state, stage)
	require.Error(t, err)
	assert.Equal(t, "original", state.Text)
}

func TestSummarizeTitleTruncates(t *testing.T) {
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)
	gw.EXPECT().ChatTurn(gomock.Any(), gomock.Any()).Return(&gateway.TextResult{Text: "reply", Cost: 15}, nil)
	gw.EXPECT().SummarizeTitle(gomock.Any(), gomock.Any()).Return(&gateway.TextResult{Text: "A very long title indeed", Cost: 5}, nil)

	exec := newExecutor(t, time.Second, config.DefaultFeaturesConfig())
	res, err := exec.Run(context.Background(),
		Chat(gw, "standard", nil, "hello"),
		SummarizeTitle(gw, "hello", 6),
	)
	require.NoError(t, err)
	assert.Equal(t, "A very", res.State.Outputs[OutputTitle])
	assert.EqualValues(t, 20, res.Cost)
	assert.Equal(t, "reply", res.State.Text)
}
