package balance

import (
	"context"
	"time"

	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// WeekBalanceStore persists the computed weekly balances. Sync replaces the
// stored set with rows and reports how many stale rows it removed.
type WeekBalanceStore interface {
	Sync(rows []*model.WeekBalance) (int, error)
}

// RecomputeResult describes one recompute run.
type RecomputeResult struct {
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	Weeks   int                  `json:"weeks"`
	Deleted int                  `json:"deleted"`
	Rows    []*model.WeekBalance `json:"-"`
}

// Recompute walks every week from the one holding the earliest interval
// through the upcoming week, computes its balance and syncs the rows to
// store. Rows for weeks outside that range are removed. With no intervals
// at all every stored row is removed.
func (e *Engine) Recompute(ctx context.Context, store WeekBalanceStore) (*RecomputeResult, error) {
	now := e.Now()

	earliest, err := e.intervals.Earliest()
	if err != nil {
		return nil, err
	}
	if earliest == nil {
		deleted, err := store.Sync(nil)
		if err != nil {
			return nil, err
		}
		return &RecomputeResult{Deleted: deleted}, nil
	}

	from := schedule.WeekStart(e.local(earliest.StartedAt), e.opts.WeekStart)
	last := schedule.WeekStart(now.AddDate(0, 0, 7), e.opts.WeekStart)
	if last.Before(from) {
		// future-dated entries only
		last = from
	}
	to := last.AddDate(0, 0, 7)

	ivs, err := e.load(ctx, from, to, now)
	if err != nil {
		return nil, err
	}
	r, err := e.Resolver(ctx, from, to)
	if err != nil {
		return nil, err
	}

	var rows []*model.WeekBalance
	for week := from; week.Before(to); week = week.AddDate(0, 0, 7) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next := week.AddDate(0, 0, 7)
		work := clippedSeconds(ivs, model.IntervalWork, week, next, now)
		plan := schedule.HoursToSeconds(r.WeekPlan(week))
		rows = append(rows, model.NewWeekBalance(week, next.AddDate(0, 0, -1), work, plan))
	}

	deleted, err := store.Sync(rows)
	if err != nil {
		return nil, err
	}
	return &RecomputeResult{
		From:    from,
		To:      to,
		Weeks:   len(rows),
		Deleted: deleted,
		Rows:    rows,
	}, nil
}
