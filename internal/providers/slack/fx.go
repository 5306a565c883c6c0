package slack

import (
	"github.com/smallbiznis/atelier/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("providers.slack",
	fx.Provide(New),
)

// New returns the webhook provider when a webhook URL is configured.
func New(cfg config.Config) Provider {
	if cfg.Alert.SlackWebhookURL == "" {
		return &NoOpProvider{}
	}
	return NewWebhookProvider(cfg.Alert.SlackWebhookURL, 0)
}
