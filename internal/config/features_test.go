package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewFeaturesHolderDefaultsWithoutPath(t *testing.T) {
	holder, err := NewFeaturesHolder(Config{}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 80, cfg.TitleMaxLength)
	assert.Contains(t, cfg.StylePresets, "watercolor")
	assert.Equal(t, 5*time.Second, cfg.StageTimeout("research", 5*time.Second))
}

func TestNewFeaturesHolderReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yml")
	body := []byte(`features:
  title_max_length: 40
  chat_history_window: 6
  style_presets:
    sketch: "Turn it into a pencil sketch."
  stage_timeouts:
    synthesize: 90s
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	holder, err := NewFeaturesHolder(Config{FeaturesPath: path}, zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 40, cfg.TitleMaxLength)
	assert.Equal(t, 6, cfg.ChatHistoryWindow)
	assert.Equal(t, "Turn it into a pencil sketch.", cfg.StylePresets["sketch"])
	assert.Equal(t, 90*time.Second, cfg.StageTimeout("synthesize", time.Second))
}

func TestNewFeaturesHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "features.yml")
	require.NoError(t, os.WriteFile(path, []byte("features:\n  title_max_length: 0\n"), 0o600))

	_, err := NewFeaturesHolder(Config{FeaturesPath: path}, zap.NewNop())
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ASSET_FRESH_TTL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
	assert.False(t, cfg.UsesDatabase())
	assert.Equal(t, time.Hour, cfg.Assets.FreshTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Assets.HistoryTTL)
	assert.Equal(t, "allow_negative", cfg.Ledger.BalancePolicy)
	assert.Equal(t, "symmetric", cfg.Ledger.AdjustmentLogging)
}
