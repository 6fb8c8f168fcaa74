package notify

import (
	"errors"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	slackapi "github.com/slack-go/slack"
)

// recordingNotifier captures sent notifications.
type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Send(n Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func TestDispatch_BestEffort(t *testing.T) {
	healthy := &recordingNotifier{}
	broken := &recordingNotifier{err: errors.New("sink down")}

	// A failing sink must not prevent delivery to the others, and Dispatch
	// must not propagate the failure.
	Dispatch([]Notifier{broken, healthy}, TaskAssigned("TASK-2026-000001", "Chiller inspection", false, []string{"tech-1"}))

	if len(healthy.sent) != 1 {
		t.Fatalf("healthy sink received %d notifications, want 1", len(healthy.sent))
	}
	if got := healthy.sent[0].Subject; !strings.Contains(got, "TASK-2026-000001") {
		t.Errorf("Subject = %q, want task number", got)
	}
}

func TestNotificationBuilders(t *testing.T) {
	n := StatusChanged("TASK-2026-000007", "new", "closed", []string{"tech-1", "tech-2"})
	if !strings.Contains(n.Subject, "new → closed") {
		t.Errorf("StatusChanged subject = %q", n.Subject)
	}
	if n.Critical {
		t.Error("status change should not be critical")
	}

	c := CriticalTask("TASK-2026-000008", "Boiler leak", nil)
	if !c.Critical {
		t.Error("CriticalTask should be critical")
	}

	s := ScheduledActivated("TASK-2026-000009", "Quarterly filter swap", true, nil)
	if !strings.Contains(s.Subject, "now active") {
		t.Errorf("ScheduledActivated subject = %q", s.Subject)
	}
	if !s.Critical {
		t.Error("ScheduledActivated should preserve criticality")
	}
}

// mockSlack records PostMessage calls.
type mockSlack struct {
	channel string
	posts   int
	err     error
}

func (m *mockSlack) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channel = channelID
	m.posts++
	return "", "", m.err
}

func TestSlackNotifier_Send(t *testing.T) {
	mock := &mockSlack{}
	s := newSlackNotifierWithClient(mock, "C12345")

	if err := s.Send(Notification{Subject: "Task TASK-2026-000001 assigned"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if mock.posts != 1 || mock.channel != "C12345" {
		t.Errorf("posts=%d channel=%q, want 1 post to C12345", mock.posts, mock.channel)
	}
}

func TestSlackNotifier_SendError(t *testing.T) {
	mock := &mockSlack{err: errors.New("rate limited")}
	s := newSlackNotifierWithClient(mock, "C12345")

	if err := s.Send(Notification{Subject: "x"}); err == nil {
		t.Fatal("Send should surface the API error")
	}
}

func TestNewSlackNotifier_Validation(t *testing.T) {
	if _, err := NewSlackNotifier("", "C1"); err == nil {
		t.Error("missing token should fail")
	}
	if _, err := NewSlackNotifier("xoxb-1", ""); err == nil {
		t.Error("missing channel should fail")
	}
}

// mockDiscord records ChannelMessageSend calls.
type mockDiscord struct {
	channel string
	content string
	err     error
}

func (m *mockDiscord) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channel = channelID
	m.content = content
	return nil, m.err
}

func TestDiscordNotifier_Send(t *testing.T) {
	mock := &mockDiscord{}
	d := newDiscordNotifierWithSession(mock, "9876")

	n := CriticalTask("TASK-2026-000002", "Compressor failure", nil)
	if err := d.Send(n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if mock.channel != "9876" {
		t.Errorf("channel = %q, want 9876", mock.channel)
	}
	if !strings.Contains(mock.content, "CRITICAL") {
		t.Errorf("content = %q, want critical marker", mock.content)
	}
}

func TestDiscordNotifier_SendError(t *testing.T) {
	mock := &mockDiscord{err: errors.New("forbidden")}
	d := newDiscordNotifierWithSession(mock, "9876")

	if err := d.Send(Notification{Subject: "x"}); err == nil {
		t.Fatal("Send should surface the API error")
	}
}
