// Package assign routes newly created work items to one agent of the
// matching rule's group.
package assign

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/models"
	"github.com/zulandar/crewradar/internal/notify"
	"github.com/zulandar/crewradar/internal/presence"
	"github.com/zulandar/crewradar/internal/roundrobin"
	"github.com/zulandar/crewradar/internal/rules"
)

// Ticketing is the ticketing system surface the engine drives.
type Ticketing interface {
	Issue(ctx context.Context, key string) (*jira.Issue, error)
	GroupMembers(ctx context.Context, group string) ([]jira.Member, error)
	AgentGroup(ctx context.Context, prefix string) (string, error)
	Assign(ctx context.Context, key, accountID string) error
}

// Status is the result class of one event.
type Status string

const (
	StatusAssigned      Status = "assigned"
	StatusCommitFailed  Status = "commit_failed"
	StatusNoRequestType Status = "no_request_type"
	StatusNoRule        Status = "no_rule"
	StatusNoGroup       Status = "no_group"
	StatusEmptyGroup    Status = "empty_group"
	StatusNoCandidates  Status = "no_candidates"
	StatusLookupFailed  Status = "lookup_failed"
	StatusHeartbeat     Status = "heartbeat"
	StatusIgnored       Status = "ignored"
)

// Assignment sources.
const (
	SourceRule      = "rule"
	SourceException = "exception"
)

// Outcome reports what happened to one event.
type Outcome struct {
	Status    Status `json:"status"`
	IssueKey  string `json:"issueKey,omitempty"`
	RuleID    string `json:"ruleId,omitempty"`
	Group     string `json:"group,omitempty"`
	AccountID string `json:"accountId,omitempty"`
	Source    string `json:"source,omitempty"`
	// Candidates is the ordered list the pick was made from.
	Candidates   []string `json:"candidates,omitempty"`
	AssignmentID string   `json:"assignmentId,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// UserLookup resolves an account to its profile. It names exception
// assignees in notices, since they are not drawn from group membership.
type UserLookup interface {
	User(ctx context.Context, accountID string) (*jira.User, error)
}

// EngineOpts holds parameters for creating an Engine.
type EngineOpts struct {
	Ticketing Ticketing
	Rules     *rules.Store
	Presence  *presence.Store
	Selector  *roundrobin.Selector
	Pipeline  *Pipeline
	// DB receives the assignment audit log. Nil disables it.
	DB *gorm.DB
	// Notifier announces committed assignments. Nil disables notices.
	Notifier notify.Notifier
	// Users names exception assignees in notices. Nil leaves them unnamed.
	Users            UserLookup
	RequestTypeField string
	AgentGroupPrefix string
	// BrowseURL is the ticketing base URL used to link notices.
	BrowseURL string
}

// Engine runs the assignment flow: match a rule, let an exception claim the
// item, otherwise narrow the group and pick the next agent in rotation, then
// commit the pick to the ticketing system.
type Engine struct {
	ticketing  Ticketing
	rules      *rules.Store
	presence   *presence.Store
	selector   *roundrobin.Selector
	exceptions *ExceptionRouter
	pipeline   *Pipeline
	db         *gorm.DB
	notifier   notify.Notifier
	users      UserLookup
	field      string
	prefix     string
	browseURL  string
}

// NewEngine creates an Engine.
func NewEngine(opts EngineOpts) (*Engine, error) {
	if opts.Ticketing == nil {
		return nil, fmt.Errorf("assign: ticketing is required")
	}
	if opts.Rules == nil {
		return nil, fmt.Errorf("assign: rules store is required")
	}
	if opts.Presence == nil {
		return nil, fmt.Errorf("assign: presence store is required")
	}
	if opts.Selector == nil {
		return nil, fmt.Errorf("assign: selector is required")
	}
	p := opts.Pipeline
	if p == nil {
		p = NewPipeline(PipelineOpts{Presence: opts.Presence})
	}
	field := opts.RequestTypeField
	if field == "" {
		field = "customfield_10010"
	}
	return &Engine{
		ticketing:  opts.Ticketing,
		rules:      opts.Rules,
		presence:   opts.Presence,
		selector:   opts.Selector,
		exceptions: NewExceptionRouter(opts.Selector),
		pipeline:   p,
		db:         opts.DB,
		notifier:   opts.Notifier,
		users:      opts.Users,
		field:      field,
		prefix:     opts.AgentGroupPrefix,
		browseURL:  strings.TrimRight(opts.BrowseURL, "/"),
	}, nil
}

// IngestEvent dispatches an inbound event. Created issues are assigned after
// the creator's heartbeat is refreshed; viewed and updated issues only
// refresh the actor's heartbeat.
func (e *Engine) IngestEvent(ctx context.Context, ev Event) (Outcome, error) {
	switch ev.Type {
	case EventViewed, EventUpdated:
		if ev.ActorID == "" {
			log.Printf("assign: %s event on %s has no actor", ev.Name, ev.IssueKey)
			return Outcome{Status: StatusIgnored, IssueKey: ev.IssueKey}, nil
		}
		e.touch(ctx, ev.ActorID)
		return Outcome{Status: StatusHeartbeat, IssueKey: ev.IssueKey, AccountID: ev.ActorID}, nil
	case EventCreated:
		if ev.ActorID != "" {
			e.touch(ctx, ev.ActorID)
		}
		return e.IngestIssue(ctx, ev.IssueKey)
	default:
		log.Printf("assign: ignoring %s event", ev.Name)
		return Outcome{Status: StatusIgnored, IssueKey: ev.IssueKey}, nil
	}
}

func (e *Engine) touch(ctx context.Context, accountID string) {
	if _, err := e.presence.Touch(ctx, accountID); err != nil {
		log.Printf("assign: heartbeat for %s: %v", accountID, err)
	}
}

// IngestIssue fetches the issue and runs the creation flow on it.
func (e *Engine) IngestIssue(ctx context.Context, key string) (Outcome, error) {
	issue, err := e.ticketing.Issue(ctx, key)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Printf("assign: fetch %s: %v", key, err)
		return Outcome{Status: StatusLookupFailed, IssueKey: key, Error: err.Error()}, nil
	}
	return e.IngestCreationEvent(ctx, WorkItemFromIssue(issue, e.field))
}

// IngestCreationEvent assigns item. Every failure short of context
// cancellation ends in an Outcome rather than an error.
func (e *Engine) IngestCreationEvent(ctx context.Context, item WorkItem) (Outcome, error) {
	out := Outcome{IssueKey: item.Key}
	if item.RequestTypeID == "" {
		log.Printf("assign: %s has no request type", item.Key)
		out.Status = StatusNoRequestType
		return out, nil
	}

	rs, err := e.rules.List(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Printf("assign: load rules for %s: %v", item.Key, err)
	}
	rule, ok := rules.Match(rs, item.ProjectID, item.RequestTypeID)
	if !ok {
		log.Printf("assign: no rule for project %s request type %s (%s)", item.ProjectID, item.RequestTypeID, item.Key)
		out.Status = StatusNoRule
		return out, nil
	}
	out.RuleID = rule.ID

	winner, triggered, err := e.exceptions.Route(ctx, rule, item)
	if err != nil {
		log.Printf("assign: exception routing for %s: %v", item.Key, err)
	}
	if triggered {
		out.Source = SourceException
		out.Candidates = rule.Exception.Assignees()
		return e.commit(ctx, item, out, winner, ""), nil
	}

	group := rule.GroupID
	if group == "" {
		group, err = e.ticketing.AgentGroup(ctx, e.prefix)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			log.Printf("assign: find agent group for %s: %v", item.Key, err)
		}
	}
	if group == "" {
		out.Status = StatusNoGroup
		return out, nil
	}
	out.Group = group

	members, err := e.ticketing.GroupMembers(ctx, group)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Printf("assign: members of %s: %v (continuing with %d)", group, err, len(members))
	}
	if len(members) == 0 {
		log.Printf("assign: group %s is empty, leaving %s unassigned", group, item.Key)
		out.Status = StatusEmptyGroup
		return out, nil
	}

	candidates := e.pipeline.Candidates(ctx, rule, item.ProjectKey, members)
	if len(candidates) == 0 {
		out.Status = StatusNoCandidates
		return out, nil
	}
	out.Source = SourceRule
	out.Candidates = AccountIDs(candidates)

	winner, err = e.selector.Select(ctx, roundrobin.RuleKey(rule.ID), out.Candidates)
	if err != nil {
		out.Status = StatusNoCandidates
		out.Error = err.Error()
		return out, nil
	}
	var name string
	for _, c := range candidates {
		if c.AccountID == winner {
			name = c.DisplayName
		}
	}
	log.Printf("assign: rule %s picked %s for %s", rule.ID, winner, item.Key)
	return e.commit(ctx, item, out, winner, name), nil
}

// commit applies the pick. The rotation cursor has already moved, so a
// failed assignment still consumes the slot.
func (e *Engine) commit(ctx context.Context, item WorkItem, out Outcome, accountID, displayName string) Outcome {
	out.AccountID = accountID
	out.Status = StatusAssigned
	if err := e.ticketing.Assign(ctx, item.Key, accountID); err != nil {
		log.Printf("assign: set assignee of %s to %s: %v", item.Key, accountID, err)
		out.Status = StatusCommitFailed
		out.Error = err.Error()
	}
	out.AssignmentID = e.record(ctx, out)

	if out.Status == StatusAssigned && e.notifier != nil {
		if displayName == "" {
			displayName = e.displayName(ctx, accountID)
		}
		n := notify.Notice{
			IssueKey:    item.Key,
			Summary:     item.Summary,
			AccountID:   accountID,
			DisplayName: displayName,
			RuleID:      out.RuleID,
			Source:      out.Source,
		}
		if e.browseURL != "" {
			n.IssueURL = e.browseURL + "/browse/" + item.Key
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			log.Printf("assign: notify %s: %v", item.Key, err)
		}
	}
	return out
}

func (e *Engine) displayName(ctx context.Context, accountID string) string {
	if e.users == nil {
		return ""
	}
	u, err := e.users.User(ctx, accountID)
	if err != nil {
		log.Printf("assign: look up name of %s: %v", accountID, err)
		return ""
	}
	return u.DisplayName
}

func (e *Engine) record(ctx context.Context, out Outcome) string {
	if e.db == nil {
		return ""
	}
	a := models.Assignment{
		ID:        uuid.NewString(),
		IssueKey:  out.IssueKey,
		RuleID:    out.RuleID,
		AccountID: out.AccountID,
		Source:    out.Source,
		Committed: out.Status == StatusAssigned,
		Error:     out.Error,
	}
	if err := e.db.WithContext(ctx).Create(&a).Error; err != nil {
		log.Printf("assign: record assignment of %s: %v", out.IssueKey, err)
		return ""
	}
	return a.ID
}

// History returns the most recent audit entries for issueKey, newest first.
// An empty issueKey lists across all items.
func (e *Engine) History(ctx context.Context, issueKey string, limit int) ([]models.Assignment, error) {
	if e.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	q := e.db.WithContext(ctx).Order("created_at desc").Limit(limit)
	if issueKey != "" {
		q = q.Where(&models.Assignment{IssueKey: issueKey})
	}
	var out []models.Assignment
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("assign: history: %w", err)
	}
	return out, nil
}
