package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang/mock/gomock"
	accountdomain "github.com/smallbiznis/atelier/internal/account/domain"
	accountservice "github.com/smallbiznis/atelier/internal/account/service"
	"github.com/smallbiznis/atelier/internal/alert"
	artifactdomain "github.com/smallbiznis/atelier/internal/artifact/domain"
	"github.com/smallbiznis/atelier/internal/assetstore"
	"github.com/smallbiznis/atelier/internal/auth"
	"github.com/smallbiznis/atelier/internal/authorization"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/gateway"
	"github.com/smallbiznis/atelier/internal/gateway/mocks"
	historydomain "github.com/smallbiznis/atelier/internal/history/domain"
	historyservice "github.com/smallbiznis/atelier/internal/history/service"
	ledgerdomain "github.com/smallbiznis/atelier/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/atelier/internal/ledger/service"
	"github.com/smallbiznis/atelier/internal/pipeline"
	"github.com/smallbiznis/atelier/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type recordingAlerter struct {
	mu        sync.Mutex
	incidents []alert.BilledInconsistency
}

func (a *recordingAlerter) BilledInconsistency(_ context.Context, incident alert.BilledInconsistency) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.incidents = append(a.incidents, incident)
}

type failingLedger struct {
	ledgerdomain.Service
}

func (failingLedger) Charge(context.Context, ledgerdomain.ChargeRequest) (*ledgerdomain.ChargeResult, error) {
	return nil, ledgerdomain.ErrLedgerUnavailable
}

type failingAssets struct {
	assetstore.Store
}

func (failingAssets) Put(context.Context, snowflake.ID, string, []byte, string) (string, error) {
	return "", assetstore.ErrStorageUnavailable
}

type countingAssets struct {
	assetstore.Store
	gets int
}

func (c *countingAssets) Get(context.Context, string) ([]byte, string, error) {
	c.gets++
	return nil, "", assetstore.ErrStorageUnavailable
}

type fixture struct {
	orch    *Orchestrator
	gw      *mocks.MockGateway
	store   *memory.Store
	ledger  ledgerdomain.Service
	history historydomain.Service
	assets  *assetstore.LocalStore
	alerts  *recordingAlerter
	node    *snowflake.Node
	clock   *clock.FakeClock
}

type option func(*Params)

func withLedgerPolicy(policy string) option {
	return func(p *Params) { p.Cfg.Ledger.BalancePolicy = policy }
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	gw := mocks.NewMockGateway(ctrl)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(now)
	log := zap.NewNop()
	store := memory.New()
	features := config.NewStaticFeaturesHolder(config.DefaultFeaturesConfig())

	assets, err := assetstore.NewLocalStore(clk, "orchestrator-test-key", "http://assets.test")
	require.NoError(t, err)
	enforcer, err := authorization.NewEnforcer()
	require.NoError(t, err)

	params := Params{
		Cfg: config.Config{
			Assets:  config.AssetConfig{FreshTTL: time.Hour, HistoryTTL: 7 * 24 * time.Hour},
			Gateway: config.GatewayConfig{StageTimeout: 5 * time.Second},
		},
		Log:       log,
		Clock:     clk,
		GenID:     node,
		Features:  features,
		Gateway:   gw,
		Artifacts: store,
		Assets:    assets,
		Authz:     authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer}),
	}
	for _, opt := range opts {
		opt(&params)
	}

	ledger, err := ledgerservice.NewService(ledgerservice.Params{
		Cfg: params.Cfg, Log: log, GenID: node, Clock: clk, Store: store,
	})
	require.NoError(t, err)
	history := historyservice.NewService(historyservice.Params{
		Cfg: params.Cfg, Log: log, GenID: node, Clock: clk, Store: store,
		Artifacts: store, Assets: assets, Features: features,
	})
	alerts := &recordingAlerter{}

	params.Executor = pipeline.NewExecutor(pipeline.Params{Cfg: params.Cfg, Log: log, Clock: clk, Features: features})
	params.Accounts = accountservice.New(accountservice.Params{Log: log, GenID: node, Clock: clk, Repo: store})
	params.Ledger = ledger
	params.History = history
	params.Alerter = alerts

	return &fixture{
		orch:    New(params),
		gw:      gw,
		store:   store,
		ledger:  ledger,
		history: history,
		assets:  assets,
		alerts:  alerts,
		node:    node,
		clock:   clk,
	}
}

func (f *fixture) account(t *testing.T, role accountdomain.Role, grant int64, approved bool) (snowflake.ID, context.Context) {
	t.Helper()
	a := &accountdomain.Account{
		ID:           f.node.Generate(),
		Email:        f.node.Generate().String() + "@example.com",
		Role:         role,
		TokenBalance: grant,
		InitialGrant: grant,
		Approved:     approved,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.store.CreateAccount(context.Background(), a))
	ctx := auth.WithPrincipal(context.Background(), auth.Principal{AccountID: a.ID, Role: string(role)})
	return a.ID, ctx
}

func (f *fixture) balance(t *testing.T, id snowflake.ID) int64 {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return a.TokenBalance
}

func (f *fixture) usage(t *testing.T, id snowflake.ID) []ledgerdomain.UsageRecordResponse {
	t.Helper()
	resp, err := f.ledger.ListUsage(context.Background(), ledgerdomain.ListUsageRequest{AccountID: id})
	require.NoError(t, err)
	return resp.Records
}

func (f *fixture) artifacts(t *testing.T, id snowflake.ID) []artifactdomain.Artifact {
	t.Helper()
	items, err := f.store.ListArtifacts(context.Background(), id, artifactdomain.ListQuery{Limit: 100})
	require.NoError(t, err)
	return items
}

func image(cost int64) *gateway.ImageResult {
	return &gateway.ImageResult{Image: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png", Cost: cost}
}

func TestResearchImageChargesOnceAfterPersist(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 1000, true)

	f.gw.EXPECT().Research(gomock.Any(), gateway.ResearchRequest{Topic: "tidal pools"}).
		Return(&gateway.TextResult{Text: "anemones, kelp", Cost: 40}, nil)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).Return(image(110), nil)

	res, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindResearchImage, Topic: "tidal pools"})
	require.NoError(t, err)
	assert.EqualValues(t, 150, res.Cost)
	assert.EqualValues(t, 850, res.Balance)
	assert.NotEmpty(t, res.ActionID)
	assert.Empty(t, res.Warnings)
	require.NotNil(t, res.URLExpiresAt)
	assert.True(t, res.URLExpiresAt.Equal(now.Add(time.Hour)))
	assert.Contains(t, res.URL, "http://assets.test/assets/accounts/"+id.String()+"/images/")

	assert.EqualValues(t, 850, f.balance(t, id))
	records := f.usage(t, id)
	require.Len(t, records, 1)
	assert.EqualValues(t, -150, records[0].Delta)
	assert.Equal(t, authorization.CapabilityImageResearch, records[0].Feature)
	assert.Equal(t, res.ArtifactID, records[0].ReferenceID)

	stored := f.artifacts(t, id)
	require.Len(t, stored, 1)
	assert.Equal(t, artifactdomain.KindResearchImage, stored[0].Kind)
	assert.EqualValues(t, 4, stored[0].SizeBytes)
}

func TestPipelineFailureLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 1000, true)

	f.gw.EXPECT().Research(gomock.Any(), gomock.Any()).
		Return(&gateway.TextResult{Text: "notes", Cost: 40}, nil)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).
		Return(nil, gateway.ErrUnavailable)

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindResearchImage, Topic: "volcanoes"})
	require.ErrorIs(t, err, ErrPipelineFailed)

	stageErr, ok := pipeline.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.StageSynthesize, stageErr.Stage)
	assert.Equal(t, pipeline.ReasonUnavailable, stageErr.Reason)
	assert.EqualValues(t, 40, stageErr.AccruedCost)

	assert.EqualValues(t, 1000, f.balance(t, id))
	assert.Empty(t, f.usage(t, id))
	assert.Empty(t, f.artifacts(t, id))
}

func TestStorageFailureIsNotCharged(t *testing.T) {
	f := newFixture(t, func(p *Params) { p.Assets = failingAssets{Store: p.Assets} })
	id, ctx := f.account(t, accountdomain.RoleUser, 500, true)

	f.gw.EXPECT().EditImage(gomock.Any(), gomock.Any()).Return(image(60), nil)

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{
		Kind:        KindImageEdit,
		SourceImage: []byte{0x89, 'P', 'N', 'G'},
		Instruction: "remove the background",
	})
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, assetstore.ErrStorageUnavailable)

	assert.EqualValues(t, 500, f.balance(t, id))
	assert.Empty(t, f.usage(t, id))
	assert.Empty(t, f.artifacts(t, id))
}

func TestChargeFailureRaisesBilledInconsistency(t *testing.T) {
	f := newFixture(t)
	f.orch.ledger = failingLedger{Service: f.ledger}
	id, ctx := f.account(t, accountdomain.RoleUser, 500, true)

	f.gw.EXPECT().Research(gomock.Any(), gomock.Any()).Return(&gateway.TextResult{Text: "notes", Cost: 10}, nil)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).Return(image(90), nil)

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindResearchImage, Topic: "orchids"})
	require.ErrorIs(t, err, ErrBilledInconsistency)
	assert.ErrorIs(t, err, ledgerdomain.ErrLedgerUnavailable)

	stored := f.artifacts(t, id)
	require.Len(t, stored, 1)

	require.Len(t, f.alerts.incidents, 1)
	incident := f.alerts.incidents[0]
	assert.Equal(t, id.String(), incident.AccountID)
	assert.Equal(t, stored[0].ID.String(), incident.ArtifactID)
	assert.EqualValues(t, 100, incident.Amount)
	assert.Equal(t, authorization.CapabilityImageResearch, incident.Feature)
}

func TestDisconnectMidPipelineIsNotCharged(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 300, true)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.gw.EXPECT().EditImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, gateway.EditRequest) (*gateway.ImageResult, error) {
			cancel()
			return image(25), nil
		})

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{
		Kind:        KindImageEdit,
		SourceImage: []byte{0x89, 'P', 'N', 'G'},
		Instruction: "sharpen",
	})
	require.ErrorIs(t, err, ErrPipelineFailed)
	stageErr, ok := pipeline.AsStageError(err)
	require.True(t, ok)
	assert.Equal(t, pipeline.ReasonCanceled, stageErr.Reason)

	assert.EqualValues(t, 300, f.balance(t, id))
	assert.Empty(t, f.usage(t, id))
	assert.Empty(t, f.artifacts(t, id))
}

func TestChatFirstTurnCreatesSessionWithTitle(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 1000, true)

	f.gw.EXPECT().ChatTurn(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.ChatRequest) (*gateway.TextResult, error) {
			assert.Equal(t, "standard", req.Mode)
			assert.Empty(t, req.History)
			return &gateway.TextResult{Text: "Start with tomatoes.", Cost: 12}, nil
		})
	f.gw.EXPECT().SummarizeTitle(gomock.Any(), gomock.Any()).
		Return(&gateway.TextResult{Text: "Garden plans", Cost: 3}, nil)

	res, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindChatTurn, Message: "What should I plant?"})
	require.NoError(t, err)
	assert.Equal(t, "Start with tomatoes.", res.Text)
	assert.Equal(t, "Garden plans", res.Title)
	assert.EqualValues(t, 15, res.Cost)
	assert.EqualValues(t, 985, res.Balance)
	require.NotEmpty(t, res.SessionID)
	assert.Empty(t, res.ArtifactID)

	sessionID, err := snowflake.ParseString(res.SessionID)
	require.NoError(t, err)
	messages, err := f.history.ListMessages(context.Background(), id, sessionID, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, historydomain.RoleUser, messages[0].Role)
	assert.Equal(t, historydomain.RoleAssistant, messages[1].Role)

	f.gw.EXPECT().ChatTurn(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.ChatRequest) (*gateway.TextResult, error) {
			require.Len(t, req.History, 2)
			assert.Equal(t, "What should I plant?", req.History[0].Content)
			return &gateway.TextResult{Text: "Water them daily.", Cost: 8}, nil
		})

	next, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindChatTurn, SessionID: sessionID, Message: "And then?"})
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, next.SessionID)
	assert.Equal(t, "Garden plans", next.Title)
	assert.EqualValues(t, 977, next.Balance)

	records := f.usage(t, id)
	require.Len(t, records, 2)
	assert.Equal(t, res.SessionID, records[0].ReferenceID)
	assert.Empty(t, records[1].ReferenceID)
}

func TestDeepChatRequiresPro(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 1000, true)

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindChatTurn, Mode: historydomain.ModeDeep, Message: "hi"})
	assert.ErrorIs(t, err, ErrFeatureNotAllowed)
	assert.EqualValues(t, 1000, f.balance(t, id))
}

func TestStyleTransformFromOwnedArtifact(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RolePro, 1000, true)

	f.gw.EXPECT().Research(gomock.Any(), gomock.Any()).Return(&gateway.TextResult{Text: "notes", Cost: 5}, nil)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).Return(image(20), nil)
	first, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindResearchImage, Topic: "harbor"})
	require.NoError(t, err)
	sourceID, err := snowflake.ParseString(first.ArtifactID)
	require.NoError(t, err)

	preset := config.DefaultFeaturesConfig().StylePresets["noir"]
	f.gw.EXPECT().EditImage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req gateway.EditRequest) (*gateway.ImageResult, error) {
			assert.Equal(t, preset, req.Instruction)
			assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, req.Image)
			return image(30), nil
		})

	res, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindStyleTransform, SourceArtifactID: sourceID, Style: "Noir"})
	require.NoError(t, err)
	assert.EqualValues(t, 945, res.Balance)

	childID, err := snowflake.ParseString(res.ArtifactID)
	require.NoError(t, err)
	child, err := f.store.GetArtifact(context.Background(), childID)
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, sourceID, *child.ParentID)
	assert.Equal(t, artifactdomain.KindStyleTransform, child.Kind)
}

func TestStyleTransformRejections(t *testing.T) {
	f := newFixture(t)
	user, userCtx := f.account(t, accountdomain.RoleUser, 1000, true)
	pro, proCtx := f.account(t, accountdomain.RolePro, 1000, true)
	upload := []byte{0x89, 'P', 'N', 'G'}

	_, err := f.orch.PerformAction(userCtx, user, ActionSpec{Kind: KindStyleTransform, SourceImage: upload, Style: "noir"})
	assert.ErrorIs(t, err, ErrFeatureNotAllowed)

	_, err = f.orch.PerformAction(proCtx, pro, ActionSpec{Kind: KindStyleTransform, SourceImage: upload, Style: "cubism"})
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = f.orch.PerformAction(proCtx, pro, ActionSpec{Kind: KindStyleTransform, Style: "noir"})
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestForeignArtifactIsForbidden(t *testing.T) {
	f := newFixture(t)
	owner, ownerCtx := f.account(t, accountdomain.RoleUser, 1000, true)
	intruder, intruderCtx := f.account(t, accountdomain.RoleUser, 1000, true)

	f.gw.EXPECT().Research(gomock.Any(), gomock.Any()).Return(&gateway.TextResult{Text: "notes", Cost: 5}, nil)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).Return(image(20), nil)
	res, err := f.orch.PerformAction(ownerCtx, owner, ActionSpec{Kind: KindResearchImage, Topic: "glaciers"})
	require.NoError(t, err)
	artifactID, err := snowflake.ParseString(res.ArtifactID)
	require.NoError(t, err)

	_, err = f.orch.PerformAction(intruderCtx, intruder, ActionSpec{
		Kind:             KindImageEdit,
		SourceArtifactID: artifactID,
		Instruction:      "crop",
	})
	assert.ErrorIs(t, err, auth.ErrForbidden)
	assert.EqualValues(t, 1000, f.balance(t, intruder))
}

func TestAccessChecks(t *testing.T) {
	f := newFixture(t)
	active, activeCtx := f.account(t, accountdomain.RoleUser, 100, true)
	pending, pendingCtx := f.account(t, accountdomain.RoleUser, 100, false)
	spec := ActionSpec{Kind: KindResearchImage, Topic: "bees"}

	_, err := f.orch.PerformAction(context.Background(), active, spec)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = f.orch.PerformAction(activeCtx, pending, spec)
	assert.ErrorIs(t, err, auth.ErrForbidden)

	_, err = f.orch.PerformAction(pendingCtx, pending, spec)
	assert.ErrorIs(t, err, ErrAccountInactive)

	ghost := f.node.Generate()
	ghostCtx := auth.WithPrincipal(context.Background(), auth.Principal{AccountID: ghost, Role: "user"})
	_, err = f.orch.PerformAction(ghostCtx, ghost, spec)
	assert.ErrorIs(t, err, ErrAccountInactive)

	expired := now.Add(-time.Minute)
	account, err := f.store.GetAccount(context.Background(), active)
	require.NoError(t, err)
	account.ExpiresAt = &expired
	require.NoError(t, f.store.UpdateAccountProfile(context.Background(), account))
	_, err = f.orch.PerformAction(activeCtx, active, spec)
	assert.ErrorIs(t, err, ErrAccountInactive)
}

func TestRejectInsufficientBlocksBeforeGateway(t *testing.T) {
	f := newFixture(t, withLedgerPolicy(string(ledgerdomain.BalancePolicyRejectInsufficient)))
	id, ctx := f.account(t, accountdomain.RoleUser, 0, true)

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindChatTurn, Message: "hello"})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestRejectInsufficientChargeRefusalKeepsNothing(t *testing.T) {
	f := newFixture(t, withLedgerPolicy(string(ledgerdomain.BalancePolicyRejectInsufficient)))
	id, ctx := f.account(t, accountdomain.RoleUser, 10, true)

	f.gw.EXPECT().Research(gomock.Any(), gomock.Any()).
		Return(&gateway.TextResult{Text: "notes", Cost: 40}, nil).Times(2)
	f.gw.EXPECT().SynthesizeImage(gomock.Any(), gomock.Any()).Return(image(110), nil).Times(2)

	for i := 0; i < 2; i++ {
		_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindResearchImage, Topic: "glaciers"})
		require.ErrorIs(t, err, ErrInsufficientBalance)
		assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
		assert.NotErrorIs(t, err, ErrBilledInconsistency)
	}

	assert.EqualValues(t, 10, f.balance(t, id))
	assert.Empty(t, f.usage(t, id))
	assert.Empty(t, f.artifacts(t, id))
	assert.Empty(t, f.alerts.incidents)

	images, err := f.history.ListImages(context.Background(), historydomain.ListImagesRequest{AccountID: id})
	require.NoError(t, err)
	assert.Empty(t, images.Images)
}

func TestCapabilityCheckedBeforeSourceLoad(t *testing.T) {
	assets := &countingAssets{}
	f := newFixture(t, func(p *Params) { p.Assets = assets })
	id, ctx := f.account(t, accountdomain.RoleUser, 1000, true)

	source := &artifactdomain.Artifact{
		ID:          f.node.Generate(),
		AccountID:   id,
		ObjectKey:   "accounts/" + id.String() + "/images/source.png",
		ContentType: "image/png",
		Kind:        artifactdomain.KindResearchImage,
		CreatedAt:   now,
	}
	require.NoError(t, f.store.CreateArtifact(context.Background(), source))

	_, err := f.orch.PerformAction(ctx, id, ActionSpec{Kind: KindStyleTransform, Style: "noir", SourceArtifactID: source.ID})
	assert.ErrorIs(t, err, ErrFeatureNotAllowed)
	assert.Zero(t, assets.gets)
}

func TestValidation(t *testing.T) {
	f := newFixture(t)
	id, ctx := f.account(t, accountdomain.RoleUser, 100, true)

	cases := []ActionSpec{
		{Kind: "teleport"},
		{Kind: KindResearchImage},
		{Kind: KindImageEdit, SourceImage: []byte("x")},
		{Kind: KindImageEdit, Instruction: "crop"},
		{Kind: KindImageEdit, Instruction: "crop", SourceImage: []byte("x"), SourceArtifactID: 7},
		{Kind: KindChatTurn, Message: "  "},
		{Kind: KindChatTurn, Message: "hi", Mode: "turbo"},
	}
	for _, spec := range cases {
		_, err := f.orch.PerformAction(ctx, id, spec)
		assert.True(t, errors.Is(err, ErrInvalidAction), "kind %q: %v", spec.Kind, err)
	}
}
