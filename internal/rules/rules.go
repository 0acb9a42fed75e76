// Package rules holds assignment rules: which agent group serves a
// (project, request type) pair and how an agent is picked from it.
package rules

import (
	"fmt"
	"strings"
)

// Strategy selects which presence statuses count as eligible.
type Strategy string

const (
	// AvailableOnly keeps agents whose status is Available.
	AvailableOnly Strategy = "RoundRobinAvailable"
	// AvailableOrAway keeps agents whose status is Available or Away.
	AvailableOrAway Strategy = "RoundRobinAvailableAway"
)

// OrDefault maps unknown or empty strategies to AvailableOnly.
func (s Strategy) OrDefault() Strategy {
	if s == AvailableOrAway {
		return AvailableOrAway
	}
	return AvailableOnly
}

// Exception routes items whose text contains Keyword to a fixed assignee list.
type Exception struct {
	Enabled     bool     `json:"enabled"`
	Keyword     string   `json:"keyword"`
	AssigneeIDs []string `json:"assigneeIds"`
}

// Assignees returns the configured assignee ids, trimmed, with blanks dropped,
// in configured order.
func (e Exception) Assignees() []string {
	out := make([]string, 0, len(e.AssigneeIDs))
	for _, id := range e.AssigneeIDs {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Rule binds a project and request type to an agent group and selection policy.
type Rule struct {
	ID               string    `json:"id"`
	ProjectID        string    `json:"projectId"`
	RequestTypeID    string    `json:"requestTypeId"`
	GroupID          string    `json:"groupId"`
	Strategy         Strategy  `json:"strategy"`
	RealtimeRequired bool      `json:"realtimeCheck"`
	MaxIssuesEnabled bool      `json:"maxIssuesEnabled"`
	MaxIssues        int       `json:"maxIssues"`
	Exception        Exception `json:"exception"`
}

// WorkloadLimit returns the open-item ceiling and whether it applies.
func (r Rule) WorkloadLimit() (int, bool) {
	return r.MaxIssues, r.MaxIssuesEnabled && r.MaxIssues > 0
}

// Match finds the rule configured for projectID and requestTypeID.
func Match(rs []Rule, projectID, requestTypeID string) (Rule, bool) {
	for _, r := range rs {
		if r.ProjectID == projectID && r.RequestTypeID == requestTypeID {
			return r, true
		}
	}
	return Rule{}, false
}

// normalize trims free-text fields and clears a disabled exception.
func normalize(r Rule) Rule {
	r.ID = strings.TrimSpace(r.ID)
	r.ProjectID = strings.TrimSpace(r.ProjectID)
	r.RequestTypeID = strings.TrimSpace(r.RequestTypeID)
	r.GroupID = strings.TrimSpace(r.GroupID)
	r.Strategy = r.Strategy.OrDefault()
	if r.Exception.Enabled {
		r.Exception.Keyword = strings.TrimSpace(r.Exception.Keyword)
		r.Exception.AssigneeIDs = r.Exception.Assignees()
	} else {
		r.Exception = Exception{}
	}
	return r
}

// Validate checks a full rule set as it would be saved.
func Validate(rs []Rule) error {
	var errs []string
	ids := make(map[string]bool)
	keys := make(map[string]string)
	for i, r := range rs {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].id is required", i))
		} else if ids[r.ID] {
			errs = append(errs, fmt.Sprintf("rules[%d].id %q is duplicated", i, r.ID))
		}
		ids[r.ID] = true
		if r.ProjectID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].projectId is required", i))
		}
		if r.RequestTypeID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d].requestTypeId is required", i))
		}
		key := r.ProjectID + "/" + r.RequestTypeID
		if other, ok := keys[key]; ok {
			errs = append(errs, fmt.Sprintf("rules[%d]: a rule for project %s and request type %s already exists (%s)", i, r.ProjectID, r.RequestTypeID, other))
		} else {
			keys[key] = r.ID
		}
		if r.MaxIssues < 0 {
			errs = append(errs, fmt.Sprintf("rules[%d].maxIssues must not be negative", i))
		}
		if r.Exception.Enabled {
			if strings.TrimSpace(r.Exception.Keyword) == "" {
				errs = append(errs, fmt.Sprintf("rules[%d].exception.keyword is required when the exception is enabled", i))
			}
			if len(r.Exception.Assignees()) == 0 {
				errs = append(errs, fmt.Sprintf("rules[%d].exception.assigneeIds must not be empty when the exception is enabled", i))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rules: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
