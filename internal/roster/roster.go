// Package roster reports agent presence for display.
package roster

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zulandar/crewradar/internal/assign"
	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/presence"
)

// Groups lists members of agent groups.
type Groups interface {
	GroupMembers(ctx context.Context, group string) ([]jira.Member, error)
	AgentGroup(ctx context.Context, prefix string) (string, error)
}

// AgentStatus is one agent's stored presence.
type AgentStatus struct {
	AccountID     string           `json:"accountId"`
	Status        presence.Status  `json:"status"`
	LastHeartbeat *time.Time       `json:"lastHeartbeat"`
	Presence      *presence.Detail `json:"presenceDetails"`
}

// Agent is a row of a group snapshot.
type Agent struct {
	AccountID     string          `json:"accountId"`
	DisplayName   string          `json:"displayName"`
	AvatarURL     string          `json:"avatarUrl,omitempty"`
	Status        presence.Status `json:"status"`
	LastHeartbeat *time.Time      `json:"lastHeartbeat"`
	Online        bool            `json:"isOnline"`
	MinutesAgo    *int            `json:"minutesAgo"`
	Group         string          `json:"groupName"`
}

// Opts holds parameters for creating a Service.
type Opts struct {
	Presence         *presence.Store
	Groups           Groups
	AgentGroupPrefix string
	OnlineWindow     time.Duration
	Now              func() time.Time
}

// Service answers status queries.
type Service struct {
	presence *presence.Store
	groups   Groups
	prefix   string
	window   time.Duration
	now      func() time.Time
}

// New creates a Service.
func New(opts Opts) *Service {
	s := &Service{
		presence: opts.Presence,
		groups:   opts.Groups,
		prefix:   opts.AgentGroupPrefix,
		window:   opts.OnlineWindow,
		now:      opts.Now,
	}
	if s.window <= 0 {
		s.window = presence.DefaultOnlineWindow
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// AgentStatus returns the agent's current status and last directory presence.
func (s *Service) AgentStatus(ctx context.Context, accountID string) (AgentStatus, error) {
	if accountID == "" {
		return AgentStatus{}, fmt.Errorf("roster: accountID is required")
	}
	rec, err := s.presence.Get(ctx, accountID)
	if err != nil {
		log.Printf("roster: read %s: %v", accountID, err)
	}
	return AgentStatus{
		AccountID:     accountID,
		Status:        rec.Status,
		LastHeartbeat: rec.LastHeartbeat,
		Presence:      rec.LastPresence,
	}, nil
}

// ListStatuses returns a snapshot of every member of group sorted by display
// name. An empty group means the default agent group. A lookup failure
// yields an empty snapshot.
func (s *Service) ListStatuses(ctx context.Context, group string) ([]Agent, error) {
	if group == "" {
		g, err := s.groups.AgentGroup(ctx, s.prefix)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("roster: find agent group: %v", err)
			return []Agent{}, nil
		}
		group = g
	}
	members, err := s.groups.GroupMembers(ctx, group)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("roster: members of %s: %v (listing %d)", group, err, len(members))
	}

	now := s.now()
	agents := make([]Agent, 0, len(members))
	cands := make([]assign.Candidate, 0, len(members))
	byID := make(map[string]Agent, len(members))
	for _, m := range members {
		if _, dup := byID[m.AccountID]; m.AccountID == "" || dup {
			continue
		}
		rec, err := s.presence.Get(ctx, m.AccountID)
		if err != nil {
			log.Printf("roster: read %s: %v", m.AccountID, err)
		}
		name := m.DisplayName
		if name == "" {
			name = "Agent"
		}
		byID[m.AccountID] = Agent{
			AccountID:     m.AccountID,
			DisplayName:   name,
			AvatarURL:     m.AvatarURL,
			Status:        rec.Status,
			LastHeartbeat: rec.LastHeartbeat,
			Online:        rec.Online(now, s.window),
			MinutesAgo:    rec.MinutesSince(now),
			Group:         group,
		}
		cands = append(cands, assign.Candidate{AccountID: m.AccountID, DisplayName: name})
	}
	assign.SortByDisplayName(cands)
	for _, c := range cands {
		agents = append(agents, byID[c.AccountID])
	}
	return agents, nil
}
