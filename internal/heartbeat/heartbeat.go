// Package heartbeat refreshes an agent's presence record on each session
// tick, syncing the status from the presence directory when the agent has
// opted in.
package heartbeat

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zulandar/crewradar/internal/directory"
	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/presence"
)

// Result sources.
const (
	// SourceManual means the stored status was kept and only the heartbeat
	// moved.
	SourceManual = "manual"
	// SourcePresence means the status came from the presence directory.
	SourcePresence = "presence"
)

// UserLookup resolves a ticketing account to its profile.
type UserLookup interface {
	User(ctx context.Context, accountID string) (*jira.User, error)
}

// Directory is the presence directory surface.
type Directory interface {
	UserIDByEmail(ctx context.Context, email string) (string, error)
	UsersByDisplayName(ctx context.Context, name string) ([]directory.User, error)
	Presence(ctx context.Context, userID string) (presence.Signal, error)
}

// Result is the outcome of one heartbeat.
type Result struct {
	Source string          `json:"source"`
	Status presence.Status `json:"status"`
	Record presence.Record `json:"record"`
}

// Service handles heartbeats.
type Service struct {
	presence *presence.Store
	users    UserLookup
	dir      Directory
}

// NewService creates a Service. A nil dir disables directory sync.
func NewService(store *presence.Store, users UserLookup, dir Directory) *Service {
	return &Service{presence: store, users: users, dir: dir}
}

// errNoMatch means a resolver found nobody; the next resolver is tried.
var errNoMatch = errors.New("heartbeat: no directory match")

type resolved struct {
	userID string
	signal presence.Signal
}

// resolver maps a ticketing user to one directory presence.
type resolver struct {
	name    string
	resolve func(ctx context.Context, u *jira.User) (resolved, error)
}

// Beat refreshes accountID's heartbeat. When sync is enabled for the agent
// and a directory is configured, the status is replaced by the directory's
// presence; any failure along the way keeps the stored status.
func (s *Service) Beat(ctx context.Context, accountID string) (Result, error) {
	if accountID == "" {
		return Result{}, fmt.Errorf("heartbeat: accountID is required")
	}
	if s.dir != nil && s.users != nil && s.presence.SyncEnabled(ctx, accountID) {
		r, err := s.sync(ctx, accountID)
		if err == nil {
			return r, nil
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		log.Printf("heartbeat: %s: directory sync failed, keeping stored status: %v", accountID, err)
	}

	rec, err := s.presence.Touch(ctx, accountID)
	if err != nil {
		return Result{}, err
	}
	return Result{Source: SourceManual, Status: rec.Status, Record: rec}, nil
}

func (s *Service) sync(ctx context.Context, accountID string) (Result, error) {
	u, err := s.users.User(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("heartbeat: look up %s: %w", accountID, err)
	}

	var match resolved
	found := false
	for _, r := range s.resolvers() {
		m, err := r.resolve(ctx, u)
		if err == nil {
			log.Printf("heartbeat: %s resolved via %s to %s (%s)", accountID, r.name, m.userID, m.signal.Availability)
			match, found = m, true
			break
		}
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		if !errors.Is(err, errNoMatch) {
			log.Printf("heartbeat: %s: resolve via %s: %v", accountID, r.name, err)
		}
	}
	if !found {
		return Result{}, errNoMatch
	}

	rec, err := s.presence.ApplyPresence(ctx, accountID, presence.NewDetail(match.userID, match.signal))
	if err != nil {
		return Result{}, err
	}
	return Result{Source: SourcePresence, Status: rec.Status, Record: rec}, nil
}

func (s *Service) resolvers() []resolver {
	return []resolver{
		{name: "email", resolve: s.byEmail},
		{name: "display name", resolve: s.byDisplayName},
	}
}

func (s *Service) byEmail(ctx context.Context, u *jira.User) (resolved, error) {
	if u.Email == "" {
		return resolved{}, errNoMatch
	}
	id, err := s.dir.UserIDByEmail(ctx, u.Email)
	if errors.Is(err, directory.ErrNotFound) {
		return resolved{}, errNoMatch
	}
	if err != nil {
		return resolved{}, err
	}
	sig, err := s.dir.Presence(ctx, id)
	if err != nil {
		return resolved{}, err
	}
	if sig.Availability == "" {
		return resolved{}, errNoMatch
	}
	return resolved{userID: id, signal: sig}, nil
}

// byDisplayName prefers the first candidate that is not offline, else the
// first offline one. Candidates without presence are skipped.
func (s *Service) byDisplayName(ctx context.Context, u *jira.User) (resolved, error) {
	if u.DisplayName == "" {
		return resolved{}, errNoMatch
	}
	users, err := s.dir.UsersByDisplayName(ctx, u.DisplayName)
	if err != nil {
		return resolved{}, err
	}
	var offline *resolved
	for _, du := range users {
		sig, err := s.dir.Presence(ctx, du.ID)
		if err != nil {
			if ctx.Err() != nil {
				return resolved{}, ctx.Err()
			}
			log.Printf("heartbeat: presence of %s: %v", du.ID, err)
			continue
		}
		if sig.Availability == "" {
			continue
		}
		if !presence.IsOffline(sig.Availability) {
			return resolved{userID: du.ID, signal: sig}, nil
		}
		if offline == nil {
			offline = &resolved{userID: du.ID, signal: sig}
		}
	}
	if offline != nil {
		return *offline, nil
	}
	return resolved{}, errNoMatch
}
