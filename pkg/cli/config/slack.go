package config

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
	slackSvc "github.com/Scarmonit/aistack/pkg/service/slack"
)

// Slack holds the optional notification configuration
type Slack struct {
	OAuthToken string
	Channel    string
}

// Flags returns CLI flags for Slack configuration
func (s *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-oauth-token",
			Usage:       "Slack OAuth token for notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("AISTACK_SLACK_OAUTH_TOKEN"),
			Destination: &s.OAuthToken,
		},
		&cli.StringFlag{
			Name:        "slack-channel",
			Usage:       "Slack channel for notifications",
			Category:    "Slack",
			Sources:     cli.EnvVars("AISTACK_SLACK_CHANNEL"),
			Destination: &s.Channel,
		},
	}
}

// Configure returns a notifier: Slack-backed when token and channel are
// both set, discarding otherwise
func (s *Slack) Configure(ctx context.Context) (interfaces.Notifier, error) {
	return slackSvc.FromConfig(ctx, s.OAuthToken, s.Channel)
}

// IsConfigured checks if Slack notifications are enabled
func (s *Slack) IsConfigured() bool {
	return s.OAuthToken != "" && s.Channel != ""
}

// LogValue returns structured log value
func (s Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("has_oauth_token", s.OAuthToken != ""),
		slog.String("channel", s.Channel),
	)
}
