package slack

import "context"

// Provider delivers operational messages to a Slack channel.
type Provider interface {
	PostMessage(ctx context.Context, channelID string, message string) error
}

// NoOpProvider drops every message. It stands in when no webhook is configured.
type NoOpProvider struct{}

func (p *NoOpProvider) PostMessage(context.Context, string, string) error {
	return nil
}
