package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type recorder struct {
	got []Notice
	err error
}

func (r *recorder) Notify(ctx context.Context, n Notice) error {
	r.got = append(r.got, n)
	return r.err
}

func TestMulti_DeliversToAll(t *testing.T) {
	a, b := &recorder{}, &recorder{err: errors.New("boom")}
	c := &recorder{}
	err := Multi{a, b, c}.Notify(context.Background(), Notice{IssueKey: "SD-1"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want joined boom", err)
	}
	for i, r := range []*recorder{a, b, c} {
		if len(r.got) != 1 {
			t.Errorf("notifier %d got %d notices, want 1", i, len(r.got))
		}
	}
}

func TestMulti_Empty(t *testing.T) {
	if err := (Multi{}).Notify(context.Background(), Notice{}); err != nil {
		t.Errorf("empty Multi returned %v", err)
	}
}

func TestText(t *testing.T) {
	tests := []struct {
		name string
		n    Notice
		want string
	}{
		{"account id only", Notice{IssueKey: "SD-1", AccountID: "acc-1"}, "SD-1 assigned to acc-1"},
		{"display name and summary", Notice{IssueKey: "SD-2", AccountID: "acc-1", DisplayName: "Alice", Summary: "VPN down"}, "SD-2 assigned to Alice: VPN down"},
		{"exception with url", Notice{IssueKey: "SD-3", AccountID: "x", Source: "exception", IssueURL: "https://acme.test/browse/SD-3"}, "SD-3 (https://acme.test/browse/SD-3) assigned to x [exception]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.n); got != tt.want {
				t.Errorf("Text = %q, want %q", got, tt.want)
			}
		})
	}
}
