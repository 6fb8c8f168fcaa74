package notify

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordNotifier posts notifications to a Discord channel.
type DiscordNotifier struct {
	session discordSession
	channel string
}

// NewDiscordNotifier creates a notifier backed by a real Discord session.
// The session is REST-only; no gateway connection is opened.
func NewDiscordNotifier(token, channel string) (*DiscordNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("notify: discord token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("notify: discord channel is required")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordNotifier{session: session, channel: channel}, nil
}

// newDiscordNotifierWithSession injects a mock session for tests.
func newDiscordNotifierWithSession(session discordSession, channel string) *DiscordNotifier {
	return &DiscordNotifier{session: session, channel: channel}
}

func (d *DiscordNotifier) Send(n Notification) error {
	content := "**" + n.Subject + "**"
	if n.Body != "" {
		content += "\n" + n.Body
	}
	if n.Critical {
		content = "🚨 " + content
	}

	if _, err := d.session.ChannelMessageSend(d.channel, content); err != nil {
		return fmt.Errorf("notify: discord send to %s: %w", d.channel, err)
	}
	return nil
}
