package slack

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/Scarmonit/aistack/pkg/domain/interfaces"
)

// Notifier posts one-line operational summaries to a Slack channel
type Notifier struct {
	client  *slack.Client
	channel string
}

// NewNotifier creates a Notifier posting to the given channel. Extra
// options are passed to the underlying Slack client.
func NewNotifier(token, channel string, opts ...slack.Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack token is required")
	}
	if channel == "" {
		return nil, goerr.New("Slack channel is required")
	}

	return &Notifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}, nil
}

// Post implements interfaces.Notifier
func (n *Notifier) Post(ctx context.Context, message string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(message, false))
	if err != nil {
		return goerr.Wrap(err, "failed to post message to Slack",
			goerr.V("channel", n.channel))
	}
	return nil
}

// Discard drops notifications, used when Slack is not configured
type Discard struct{}

// Post implements interfaces.Notifier
func (Discard) Post(_ context.Context, _ string) error {
	return nil
}

// FromConfig returns a Slack-backed notifier when both token and channel
// are set, and a discarding one otherwise
func FromConfig(ctx context.Context, token, channel string) (interfaces.Notifier, error) {
	if token == "" || channel == "" {
		ctxlog.From(ctx).Debug("Slack notifications disabled")
		return Discard{}, nil
	}
	return NewNotifier(token, channel)
}

var _ interfaces.Notifier = (*Notifier)(nil)
var _ interfaces.Notifier = Discard{}
