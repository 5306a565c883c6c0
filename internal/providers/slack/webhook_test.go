package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookPostsPayload(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewWebhookProvider(srv.URL, 0)
	require.NoError(t, p.PostMessage(context.Background(), "#ops", "ledger down"))
	assert.Equal(t, "#ops", got.Channel)
	assert.Equal(t, "ledger down", got.Text)
}

func TestWebhookRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer srv.Close()

	err := NewWebhookProvider(srv.URL, 0).PostMessage(context.Background(), "", "x")
	require.ErrorIs(t, err, ErrWebhookRejected)
	assert.Contains(t, err.Error(), "invalid_token")
}

func TestNewSelectsProvider(t *testing.T) {
	assert.IsType(t, &NoOpProvider{}, New(config.Config{}))

	cfg := config.Config{Alert: config.AlertConfig{SlackWebhookURL: "https://hooks.example/x"}}
	assert.IsType(t, &WebhookProvider{}, New(cfg))
}
