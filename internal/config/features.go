package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FeaturesConfig carries tunables that may change without a restart.
type FeaturesConfig struct {
	StylePresets      map[string]string        `mapstructure:"style_presets"`
	StageTimeouts     map[string]time.Duration `mapstructure:"stage_timeouts"`
	TitleMaxLength    int                      `mapstructure:"title_max_length"`
	ChatHistoryWindow int                      `mapstructure:"chat_history_window"`
	ImageSize         string                   `mapstructure:"image_size"`
}

func DefaultFeaturesConfig() FeaturesConfig {
	return FeaturesConfig{
		StylePresets: map[string]string{
			"watercolor": "Repaint the image as a soft watercolor illustration.",
			"line_art":   "Convert the image into clean black line art on white.",
			"pixel":      "Render the image as 32-color pixel art.",
			"noir":       "Restyle the image as a high-contrast film noir still.",
			"anime":      "Redraw the image in a cel-shaded anime style.",
		},
		StageTimeouts:     map[string]time.Duration{},
		TitleMaxLength:    80,
		ChatHistoryWindow: 20,
		ImageSize:         "1024x1024",
	}
}

type FeaturesHolder struct {
	current atomic.Value // holds FeaturesConfig
}

// NewStaticFeaturesHolder returns a holder that never reloads.
func NewStaticFeaturesHolder(cfg FeaturesConfig) *FeaturesHolder {
	holder := &FeaturesHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewFeaturesHolder(cfg Config, log *zap.Logger) (*FeaturesHolder, error) {
	path := strings.TrimSpace(cfg.FeaturesPath)
	if path == "" {
		return NewStaticFeaturesHolder(DefaultFeaturesConfig()), nil
	}

	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read features config: %w", err)
	}

	current, err := decodeFeatures(v)
	if err != nil {
		return nil, err
	}

	holder := NewStaticFeaturesHolder(current)
	log = log.Named("config.features")

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeFeatures(v)
		if err != nil {
			log.Warn("features config reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("features config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *FeaturesHolder) Get() FeaturesConfig {
	return h.current.Load().(FeaturesConfig)
}

// StageTimeout returns the override for a stage, or def when none is set.
func (c FeaturesConfig) StageTimeout(stage string, def time.Duration) time.Duration {
	if d, ok := c.StageTimeouts[stage]; ok && d > 0 {
		return d
	}
	return def
}

func decodeFeatures(v *viper.Viper) (FeaturesConfig, error) {
	cfg := DefaultFeaturesConfig()
	if err := v.UnmarshalKey("features", &cfg); err != nil {
		return FeaturesConfig{}, err
	}
	if err := validateFeatures(cfg); err != nil {
		return FeaturesConfig{}, err
	}
	return cfg, nil
}

func validateFeatures(cfg FeaturesConfig) error {
	if len(cfg.StylePresets) == 0 {
		return errors.New("features.style_presets cannot be empty")
	}
	if cfg.TitleMaxLength <= 0 {
		return errors.New("features.title_max_length must be positive")
	}
	if cfg.ChatHistoryWindow <= 0 {
		return errors.New("features.chat_history_window must be positive")
	}
	for stage, d := range cfg.StageTimeouts {
		if d < 0 {
			return fmt.Errorf("features.stage_timeouts.%s must not be negative", stage)
		}
	}
	return nil
}
