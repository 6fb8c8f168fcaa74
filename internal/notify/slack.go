package notify

import (
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts notifications to a Slack channel.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// NewSlackNotifier creates a notifier backed by the real Slack API.
func NewSlackNotifier(botToken, channel string) (*SlackNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	return &SlackNotifier{client: slackapi.New(botToken), channel: channel}, nil
}

// newSlackNotifierWithClient injects a mock client for tests.
func newSlackNotifierWithClient(client slackClient, channel string) *SlackNotifier {
	return &SlackNotifier{client: client, channel: channel}
}

func (s *SlackNotifier) Send(n Notification) error {
	text := n.Subject
	if n.Body != "" {
		text += "\n" + n.Body
	}
	if n.Critical {
		text = ":rotating_light: " + text
	}

	_, _, err := s.client.PostMessage(s.channel, slackapi.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("notify: slack post to %s: %w", s.channel, err)
	}
	return nil
}
