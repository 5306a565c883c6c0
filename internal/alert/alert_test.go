package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSlack struct {
	channel string
	message string
	err     error
	ctxErr  error
}

func (r *recordingSlack) PostMessage(ctx context.Context, channelID, message string) error {
	r.channel = channelID
	r.message = message
	r.ctxErr = ctx.Err()
	return r.err
}

func TestBilledInconsistencyPostsAndLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sink := &recordingSlack{}
	a := New(Params{
		Cfg:   config.Config{Alert: config.AlertConfig{SlackChannel: "#billing"}},
		Log:   zap.New(core),
		Slack: sink,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.BilledInconsistency(ctx, BilledInconsistency{
		ActionID:   "01J0000000000000000000000",
		AccountID:  "12",
		ArtifactID: "34",
		Feature:    "image.research",
		Amount:     150,
		Cause:      errors.New("ledger_unavailable"),
	})

	assert.Equal(t, "#billing", sink.channel)
	assert.Contains(t, sink.message, "artifact `34`")
	assert.Contains(t, sink.message, "150 tokens")
	assert.NoError(t, sink.ctxErr)

	entries := logs.FilterMessage("billed inconsistency").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.ErrorLevel, entries[0].Level)
}

func TestDeliveryFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	a := New(Params{Log: zap.New(core), Slack: &recordingSlack{err: errors.New("boom")}})

	a.BilledInconsistency(context.Background(), BilledInconsistency{AccountID: "1"})
	assert.Equal(t, 1, logs.FilterMessage("alert delivery failed").Len())
}
