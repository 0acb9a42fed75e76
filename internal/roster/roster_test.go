package roster

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/kv/kvtest"
	"github.com/zulandar/crewradar/internal/presence"
)

type fakeGroups struct {
	agentGroup string
	members    map[string][]jira.Member
}

func (f *fakeGroups) GroupMembers(ctx context.Context, group string) ([]jira.Member, error) {
	return f.members[group], nil
}

func (f *fakeGroups) AgentGroup(ctx context.Context, prefix string) (string, error) {
	if f.agentGroup == "" {
		return "", errors.New("no agent group")
	}
	return f.agentGroup, nil
}

var t0 = time.Date(2026, 2, 10, 14, 0, 0, 0, time.UTC)

func TestAgentStatus(t *testing.T) {
	ctx := context.Background()
	now := t0
	store := presence.NewStore(kvtest.Open(t), func() time.Time { return now })
	svc := New(Opts{Presence: store, Groups: &fakeGroups{}})

	st, err := svc.AgentStatus(ctx, "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if st.Status != presence.Available || st.LastHeartbeat != nil || st.Presence != nil {
		t.Errorf("unknown agent = %+v, want Available defaults", st)
	}

	d := presence.NewDetail("g-1", presence.Signal{Availability: "Away"})
	if _, err := store.ApplyPresence(ctx, "acc-1", d); err != nil {
		t.Fatal(err)
	}
	st, _ = svc.AgentStatus(ctx, "acc-1")
	if st.Status != presence.Away || st.Presence == nil || st.Presence.DirectoryUserID != "g-1" {
		t.Errorf("status = %+v", st)
	}

	if _, err := svc.AgentStatus(ctx, ""); err == nil {
		t.Error("expected error for empty account")
	}
}

func TestListStatuses(t *testing.T) {
	ctx := context.Background()
	now := t0
	store := presence.NewStore(kvtest.Open(t), func() time.Time { return now })
	store.SetStatus(ctx, "zoe", presence.Busy)
	now = t0.Add(7 * time.Minute)
	store.SetStatus(ctx, "amir", presence.Available)
	now = t0.Add(15*time.Minute + 20*time.Second)

	groups := &fakeGroups{
		agentGroup: "jira-servicemanagement-users-acme",
		members: map[string][]jira.Member{
			"jira-servicemanagement-users-acme": {
				{AccountID: "zoe", DisplayName: "Zoë"},
				{AccountID: "amir", DisplayName: "Amir", AvatarURL: "https://a/48.png"},
				{AccountID: "noname"},
				{AccountID: "amir", DisplayName: "Amir"},
				{DisplayName: "No ID"},
			},
		},
	}
	svc := New(Opts{Presence: store, Groups: groups, Now: func() time.Time { return now }})

	agents, err := svc.ListStatuses(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(agents) != 3 {
		t.Fatalf("agents = %+v, want 3", agents)
	}
	want := []string{"noname", "amir", "zoe"}
	for i, a := range agents {
		if a.AccountID != want[i] {
			t.Fatalf("order = %v, want Agent, Amir, Zoë", agents)
		}
	}

	amir := agents[1]
	if !amir.Online || amir.MinutesAgo == nil || *amir.MinutesAgo != 8 || amir.AvatarURL == "" {
		t.Errorf("amir = %+v, want online 8 minutes ago", amir)
	}
	zoe := agents[2]
	if zoe.Online || *zoe.MinutesAgo != 15 || zoe.Status != presence.Busy {
		t.Errorf("zoe = %+v, want offline Busy 15 minutes ago", zoe)
	}
	noname := agents[0]
	if noname.DisplayName != "Agent" || noname.MinutesAgo != nil || noname.Online {
		t.Errorf("noname = %+v", noname)
	}
	if noname.Group != "jira-servicemanagement-users-acme" {
		t.Errorf("Group = %q", noname.Group)
	}
}

func TestListStatuses_NoAgentGroup(t *testing.T) {
	svc := New(Opts{Presence: presence.NewStore(kvtest.Open(t), nil), Groups: &fakeGroups{}})
	agents, err := svc.ListStatuses(context.Background(), "")
	if err != nil || len(agents) != 0 {
		t.Errorf("ListStatuses = %v, %v; want empty", agents, err)
	}
}
