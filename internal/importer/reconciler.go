package importer

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/schedule"
)

// Store is the part of the ledger the reconciler reads and writes.
type Store interface {
	ListOverlapping(start, end, now time.Time) ([]*model.Interval, error)
	CreateMany(ivs []*model.Interval) error
}

// Options controls a single import run.
type Options struct {
	DryRun bool
}

// Result summarizes an import run.
type Result struct {
	Source    string             `json:"source"`
	Parsed    int                `json:"parsed"`
	Skipped   int                `json:"skipped"`
	Persisted int                `json:"persisted"`
	Dropped   int                `json:"dropped"`
	DryRun    bool               `json:"dry_run"`
	Intervals []*model.Interval  `json:"intervals"`
	RowErrors []*errors.RowError `json:"-"`
}

// Reconciler merges imported rows into the ledger without creating overlaps.
// Runs are serialized.
type Reconciler struct {
	mu    sync.Mutex
	store Store
	loc   *time.Location
	now   func() time.Time
}

// NewReconciler creates a reconciler that cuts days in loc. A nil clock
// means time.Now.
func NewReconciler(store Store, loc *time.Location, now func() time.Time) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Reconciler{store: store, loc: loc, now: now}
}

type span struct {
	start, end time.Time
	desc       string
}

func (s span) valid() bool {
	return s.end.After(s.start)
}

// lastInstant is the inclusive end of a day fragment cut at midnight.
const lastInstant = time.Millisecond

// Import verifies raw, parses it with src and stores the reconciled rows as
// WORK intervals in one transaction. A FormatError aborts before any write.
func (r *Reconciler) Import(ctx context.Context, src Source, raw []byte, opts Options) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := logging.FromContext(ctx).With(logging.KeySource, src.Name())
	if err := src.Verify(raw); err != nil {
		log.Warn("import rejected", logging.KeyError, err)
		return nil, err
	}

	rows, rowErrs := src.Rows(raw)
	for _, re := range rowErrs {
		log.Warn("import row skipped", logging.KeyRow, re.Row, logging.KeyError, re)
	}

	res := &Result{
		Source:    src.Name(),
		Parsed:    len(rows) + len(rowErrs),
		Skipped:   len(rowErrs),
		DryRun:    opts.DryRun,
		RowErrors: rowErrs,
	}

	spans, dropped := clampBatch(rows)
	res.Dropped += dropped
	spans = splitDays(spans, r.loc)

	if len(spans) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		now := r.now()
		from, to := bounds(spans)
		existing, err := r.store.ListOverlapping(from, to, now)
		if err != nil {
			return nil, errors.Wrap(err, "load existing intervals")
		}
		spans, dropped = resolveCollisions(spans, existing, now)
		res.Dropped += dropped
	}

	spans, dropped = finalize(spans)
	res.Dropped += dropped

	for _, s := range spans {
		iv := model.NewInterval(model.IntervalWork, s.start, src.Name(), s.desc)
		iv.Close(s.end)
		iv.LastPingAt = s.end
		res.Intervals = append(res.Intervals, iv)
	}

	if !opts.DryRun && len(res.Intervals) > 0 {
		if err := r.store.CreateMany(res.Intervals); err != nil {
			return nil, errors.Wrap(err, "store imported intervals")
		}
		res.Persisted = len(res.Intervals)
	}

	log.Info("import finished",
		"parsed", res.Parsed,
		"skipped", res.Skipped,
		"dropped", res.Dropped,
		logging.KeyCount, len(res.Intervals),
		"dry_run", opts.DryRun)
	return res, nil
}

// clampBatch sorts rows by start and moves each start up to the latest end
// seen so far, so rows of one batch never overlap each other. Rows that
// become empty, including rows wholly inside an earlier one, are dropped.
func clampBatch(rows []Row) ([]span, int) {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start.Equal(sorted[j].Start) {
			return sorted[i].End.Before(sorted[j].End)
		}
		return sorted[i].Start.Before(sorted[j].Start)
	})

	var spans []span
	var maxEnd time.Time
	dropped := 0
	for _, row := range sorted {
		s := span{start: row.Start, end: row.End, desc: row.Description}
		if s.start.Before(maxEnd) {
			s.start = maxEnd
		}
		if !s.valid() {
			dropped++
			continue
		}
		spans = append(spans, s)
		if s.end.After(maxEnd) {
			maxEnd = s.end
		}
	}
	return spans, dropped
}

// splitDays cuts spans at every midnight in loc. The part before midnight
// ends at 23:59:59.999 and the next part starts at 00:00:00.
func splitDays(spans []span, loc *time.Location) []span {
	var out []span
	for _, s := range spans {
		for {
			midnight := schedule.NextDay(s.start.In(loc))
			if !s.end.After(midnight) {
				out = append(out, s)
				break
			}
			head := span{start: s.start, end: midnight.Add(-lastInstant), desc: s.desc}
			if head.valid() {
				out = append(out, head)
			}
			s.start = midnight
		}
	}
	return out
}

func bounds(spans []span) (time.Time, time.Time) {
	from, to := spans[0].start, spans[0].end
	for _, s := range spans[1:] {
		if s.start.Before(from) {
			from = s.start
		}
		if s.end.After(to) {
			to = s.end
		}
	}
	return from, to
}

type stored struct {
	start, end time.Time
}

// resolveCollisions trims every span against the stored intervals. A span
// inside a stored interval is dropped; one that contains a stored interval
// is split in two; one that overlaps its head or tail is clamped. Trimmed
// fragments go back on the worklist until no span collides.
func resolveCollisions(spans []span, existing []*model.Interval, now time.Time) ([]span, int) {
	index := make([]stored, 0, len(existing))
	for _, iv := range existing {
		index = append(index, stored{start: iv.StartedAt, end: iv.End(now)})
	}
	sort.Slice(index, func(i, j int) bool { return index[i].start.Before(index[j].start) })

	queue := append([]span(nil), spans...)
	var out []span
	dropped := 0
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]

		// only stored intervals starting before s ends can collide
		limit := sort.Search(len(index), func(i int) bool { return !index[i].start.Before(s.end) })
		hit := -1
		for i := 0; i < limit; i++ {
			if index[i].end.After(s.start) {
				hit = i
				break
			}
		}
		if hit < 0 {
			out = append(out, s)
			continue
		}

		e := index[hit]
		switch {
		case !s.start.Before(e.start) && !s.end.After(e.end):
			dropped++
		case s.start.Before(e.start) && s.end.After(e.end):
			queue = append(queue,
				span{start: s.start, end: e.start, desc: s.desc},
				span{start: e.end, end: s.end, desc: s.desc})
		case s.start.Before(e.start):
			queue = append(queue, span{start: s.start, end: e.start, desc: s.desc})
		default:
			queue = append(queue, span{start: e.end, end: s.end, desc: s.desc})
		}
	}
	return out, dropped
}

// finalize removes duplicate and empty spans and orders the rest by start.
func finalize(spans []span) ([]span, int) {
	type pair struct{ start, end int64 }
	seen := make(map[pair]bool, len(spans))
	var out []span
	dropped := 0
	for _, s := range spans {
		p := pair{s.start.UnixNano(), s.end.UnixNano()}
		if !s.valid() || seen[p] {
			dropped++
			continue
		}
		seen[p] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start.Before(out[j].start) })
	return out, dropped
}
