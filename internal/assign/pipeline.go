package assign

import (
	"context"
	"log"
	"sort"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/zulandar/crewradar/internal/jira"
	"github.com/zulandar/crewradar/internal/presence"
	"github.com/zulandar/crewradar/internal/rules"
)

// Candidate is a group member considered for assignment.
type Candidate struct {
	AccountID     string
	DisplayName   string
	Status        presence.Status
	LastHeartbeat *time.Time
}

// WorkloadCounter reports how many open items an agent holds in a project.
type WorkloadCounter interface {
	Count(ctx context.Context, projectKey, accountID string) int
}

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	Presence     *presence.Store
	Workload     WorkloadCounter
	OnlineWindow time.Duration
	Now          func() time.Time
}

// Pipeline narrows a group's members to the ordered list the fair selector
// rotates over.
type Pipeline struct {
	presence *presence.Store
	workload WorkloadCounter
	window   time.Duration
	now      func() time.Time
}

// NewPipeline creates a Pipeline. A zero OnlineWindow uses
// presence.DefaultOnlineWindow and a nil Now uses time.Now.
func NewPipeline(opts PipelineOpts) *Pipeline {
	p := &Pipeline{
		presence: opts.Presence,
		workload: opts.Workload,
		window:   opts.OnlineWindow,
		now:      opts.Now,
	}
	if p.window <= 0 {
		p.window = presence.DefaultOnlineWindow
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Candidates returns the eligible members for rule, sorted by display name.
// A filter that would leave nobody is discarded.
func (p *Pipeline) Candidates(ctx context.Context, rule rules.Rule, projectKey string, members []jira.Member) []Candidate {
	all := p.load(ctx, members)
	if len(all) == 0 {
		return nil
	}

	base := p.filterPresence(rule, all)
	if len(base) == 0 {
		log.Printf("assign: rule %s: no member passes strategy/realtime filters, using whole group", rule.ID)
		base = all
	}

	final := base
	if limit, ok := rule.WorkloadLimit(); ok && p.workload != nil {
		var under []Candidate
		for _, c := range base {
			n := p.workload.Count(ctx, projectKey, c.AccountID)
			if n >= limit {
				log.Printf("assign: rule %s: %s has %d/%d open items, skipping", rule.ID, c.AccountID, n, limit)
				continue
			}
			under = append(under, c)
		}
		if len(under) == 0 {
			log.Printf("assign: rule %s: every candidate is at the workload limit, ignoring it", rule.ID)
		} else {
			final = under
		}
	}

	out := make([]Candidate, len(final))
	copy(out, final)
	SortByDisplayName(out)
	return out
}

func (p *Pipeline) load(ctx context.Context, members []jira.Member) []Candidate {
	out := make([]Candidate, 0, len(members))
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.AccountID == "" || seen[m.AccountID] {
			continue
		}
		seen[m.AccountID] = true
		rec, err := p.presence.Get(ctx, m.AccountID)
		if err != nil {
			log.Printf("assign: read presence of %s: %v (assuming available)", m.AccountID, err)
		}
		name := m.DisplayName
		if name == "" {
			name = m.AccountID
		}
		out = append(out, Candidate{
			AccountID:     m.AccountID,
			DisplayName:   name,
			Status:        rec.Status,
			LastHeartbeat: rec.LastHeartbeat,
		})
	}
	return out
}

func (p *Pipeline) filterPresence(rule rules.Rule, all []Candidate) []Candidate {
	strategy := rule.Strategy.OrDefault()
	now := p.now()
	var out []Candidate
	for _, c := range all {
		if !StatusEligible(strategy, c.Status) {
			continue
		}
		if rule.RealtimeRequired {
			rec := presence.Record{LastHeartbeat: c.LastHeartbeat}
			if !rec.Online(now, p.window) {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// StatusEligible reports whether status passes strategy.
func StatusEligible(strategy rules.Strategy, status presence.Status) bool {
	switch strategy.OrDefault() {
	case rules.AvailableOrAway:
		return status == presence.Available || status == presence.Away
	default:
		return status == presence.Available
	}
}

// SortByDisplayName orders candidates by display name using locale-aware
// collation, breaking ties by account id.
func SortByDisplayName(cs []Candidate) {
	col := collate.New(language.Und)
	sort.SliceStable(cs, func(i, j int) bool {
		if c := col.CompareString(cs[i].DisplayName, cs[j].DisplayName); c != 0 {
			return c < 0
		}
		return cs[i].AccountID < cs[j].AccountID
	})
}

// AccountIDs returns the candidates' account ids in order.
func AccountIDs(cs []Candidate) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.AccountID
	}
	return ids
}
