// Package workload counts an agent's open items in a project through an
// ordered chain of query strategies, failing open to zero.
package workload

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// SearchPageLimit caps the page fetched by the search strategies.
const SearchPageLimit = 200

// Searcher is the ticketing query surface the default chain uses.
type Searcher interface {
	ApproximateCount(ctx context.Context, jql string) (int, error)
	SearchPost(ctx context.Context, jql string, maxResults int) (int, error)
	SearchGet(ctx context.Context, jql string, maxResults int) (int, error)
}

// Strategy is one way of counting. A result is accepted when Count succeeds
// and either returns a positive count or AcceptZero is set.
type Strategy struct {
	Name       string
	Count      func(ctx context.Context, jql string) (int, error)
	AcceptZero bool
}

func (s Strategy) accepts(n int, err error) bool {
	return err == nil && (n > 0 || s.AcceptZero)
}

// Counter runs strategies in order and returns the first accepted count.
type Counter struct {
	strategies []Strategy
}

// NewChain creates a Counter from explicit strategies.
func NewChain(strategies ...Strategy) *Counter {
	return &Counter{strategies: strategies}
}

// NewCounter builds the default chain: the approximate count (trusted only
// when positive), then a POST search page, then the same search over GET.
func NewCounter(s Searcher) *Counter {
	return NewChain(
		Strategy{Name: "approximate-count", Count: s.ApproximateCount},
		Strategy{Name: "search-post", AcceptZero: true, Count: func(ctx context.Context, jql string) (int, error) {
			return s.SearchPost(ctx, jql, SearchPageLimit)
		}},
		Strategy{Name: "search-get", AcceptZero: true, Count: func(ctx context.Context, jql string) (int, error) {
			return s.SearchGet(ctx, jql, SearchPageLimit)
		}},
	)
}

// OpenIssuesJQL selects unresolved issues assigned to accountID in projectKey.
func OpenIssuesJQL(projectKey, accountID string) string {
	return fmt.Sprintf(`project = "%s" AND assignee = "%s" AND (resolution is EMPTY OR resolution = Unresolved)`,
		quote(projectKey), quote(accountID))
}

func quote(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}

// Count returns the agent's open item count. When every strategy fails the
// count is 0, so workload limits never exclude an agent on missing data.
func (c *Counter) Count(ctx context.Context, projectKey, accountID string) int {
	jql := OpenIssuesJQL(projectKey, accountID)
	for _, s := range c.strategies {
		n, err := s.Count(ctx, jql)
		if s.accepts(n, err) {
			if n < 0 {
				n = 0
			}
			return n
		}
		if err != nil {
			log.Printf("workload: %s for %s in %s: %v", s.Name, accountID, projectKey, err)
		}
	}
	return 0
}
