package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"

	"github.com/zulandar/crewradar/internal/notify"
)

type mockSlackClient struct {
	mu       sync.Mutex
	channels []string
	texts    []string
	errs     []error
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return "", "", err
		}
	}
	_, values, err := slackapi.UnsafeApplyMsgOptions("xoxb-test", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	m.channels = append(m.channels, channelID)
	m.texts = append(m.texts, values.Get("text"))
	return channelID, "1234567890.123456", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without bot token")
	}
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil {
		t.Error("expected error without channel")
	}
	if _, err := New(Opts{BotToken: "xoxb-1", ChannelID: "C1"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNotify_PostsText(t *testing.T) {
	mock := &mockSlackClient{}
	n, err := New(Opts{ChannelID: "C123", Client: mock})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.Notify(context.Background(), notify.Notice{IssueKey: "SD-7", AccountID: "acc-1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "C123" {
		t.Fatalf("channels = %v", mock.channels)
	}
	if mock.texts[0] != "SD-7 assigned to Alice" {
		t.Errorf("text = %q", mock.texts[0])
	}
}

func TestNotify_RetriesRateLimit(t *testing.T) {
	mock := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	n, _ := New(Opts{ChannelID: "C1", Client: mock})
	if err := n.Notify(context.Background(), notify.Notice{IssueKey: "SD-1", AccountID: "a"}); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(mock.texts) != 1 {
		t.Errorf("posted %d messages, want 1 after retry", len(mock.texts))
	}
}

func TestNotify_Error(t *testing.T) {
	mock := &mockSlackClient{errs: []error{errors.New("channel_not_found")}}
	n, _ := New(Opts{ChannelID: "C1", Client: mock})
	err := n.Notify(context.Background(), notify.Notice{IssueKey: "SD-1"})
	if err == nil || !strings.Contains(err.Error(), "slack: post notice for SD-1") {
		t.Errorf("err = %v", err)
	}
}
