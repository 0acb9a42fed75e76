package assign

import (
	"context"
	"log"
	"strings"

	"github.com/zulandar/crewradar/internal/roundrobin"
	"github.com/zulandar/crewradar/internal/rules"
)

// ExceptionRouter sends items mentioning a rule's keyword to the rule's fixed
// exception assignees, rotating over them with their own cursor.
type ExceptionRouter struct {
	selector *roundrobin.Selector
}

// NewExceptionRouter creates an ExceptionRouter.
func NewExceptionRouter(selector *roundrobin.Selector) *ExceptionRouter {
	return &ExceptionRouter{selector: selector}
}

// Applies reports whether the rule's exception is usable and matches the
// item. A misconfigured exception never applies.
func (r *ExceptionRouter) Applies(rule rules.Rule, item WorkItem) bool {
	exc := rule.Exception
	keyword := strings.TrimSpace(exc.Keyword)
	if !exc.Enabled || keyword == "" || len(exc.Assignees()) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(item.Text()), strings.ToLower(keyword))
}

// Route returns the exception assignee for item, or triggered=false when the
// exception does not apply. The assignees keep their configured order.
func (r *ExceptionRouter) Route(ctx context.Context, rule rules.Rule, item WorkItem) (string, bool, error) {
	if !r.Applies(rule, item) {
		return "", false, nil
	}
	winner, err := r.selector.Select(ctx, roundrobin.ExceptionKey(rule.ID), rule.Exception.Assignees())
	if err != nil {
		return "", false, err
	}
	log.Printf("assign: %s matched exception keyword %q of rule %s, picked %s", item.Key, rule.Exception.Keyword, rule.ID, winner)
	return winner, true, nil
}
