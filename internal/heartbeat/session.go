package heartbeat

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule is the session tick schedule.
const DefaultSchedule = "@every 30s"

// RunSession beats once immediately and then on every schedule tick until
// ctx is cancelled. onBeat, when set, sees every result.
func (s *Service) RunSession(ctx context.Context, accountID, schedule string, onBeat func(Result, error)) error {
	if accountID == "" {
		return fmt.Errorf("heartbeat: accountID is required")
	}
	if schedule == "" {
		schedule = DefaultSchedule
	}

	tick := func() {
		r, err := s.Beat(ctx, accountID)
		if onBeat != nil {
			onBeat(r, err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, tick); err != nil {
		return fmt.Errorf("heartbeat: schedule %q: %w", schedule, err)
	}

	tick()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
