package notify

import (
	"context"

	"github.com/harunnryd/opsgate/internal/errors"

	"github.com/slack-go/slack"
)

type SlackSender struct {
	client  *slack.Client
	channel string
}

// NewSlackSender posts to channel with a bot token. Options are passed to the
// underlying client.
func NewSlackSender(botToken, channel string, options ...slack.Option) *SlackSender {
	return &SlackSender{
		client:  slack.New(botToken, options...),
		channel: channel,
	}
}

func (s *SlackSender) Name() string {
	return "slack"
}

func (s *SlackSender) Send(ctx context.Context, content string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(content, false))
	if err != nil {
		return errors.Wrap(err, "failed to send Slack message")
	}
	return nil
}

func (s *SlackSender) Health(ctx context.Context) error {
	if _, err := s.client.AuthTestContext(ctx); err != nil {
		return errors.Transient("Slack auth check failed: " + err.Error())
	}
	return nil
}
