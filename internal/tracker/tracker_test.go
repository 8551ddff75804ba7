package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T, th Thresholds) (*Tracker, *storage.IntervalRepo, *clock) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := storage.NewIntervalRepo(db)
	clk := &clock{now: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	return New(repo, th, clk.Now), repo, clk
}

func openCount(t *testing.T, repo *storage.IntervalRepo) int {
	open, err := repo.ListOpen()
	require.NoError(t, err)
	return len(open)
}

// =============================================================================
// Transition Tests
// =============================================================================

func TestStartWorkFromStopped(t *testing.T) {
	tr, repo, _ := setup(t, Thresholds{})
	ctx := context.Background()

	res, err := tr.StartWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.From)
	assert.Equal(t, StateWorking, res.To)
	require.NotNil(t, res.Started)
	assert.Equal(t, model.SourceManual, res.Started.Source)

	state, open, err := tr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateWorking, state)
	require.NotNil(t, open)
	assert.Equal(t, res.Started.Key, open.Key)
	assert.Equal(t, 1, openCount(t, repo))
}

func TestWorkBreakWorkStop(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(2 * time.Hour)

	res, err := tr.StartBreak(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateWorking, res.From)
	assert.Equal(t, StateOnBreak, res.To)
	require.Len(t, res.Closed, 1)
	assert.True(t, res.Closed[0].EndedAt.Equal(clk.Now()))
	clk.Advance(30 * time.Minute)

	_, err = tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	res, err = tr.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateWorking, res.From)
	assert.Equal(t, StateStopped, res.To)
	assert.Nil(t, res.Started)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, model.IntervalWork, all[0].Type)
	assert.Equal(t, model.IntervalBreak, all[1].Type)
	assert.Equal(t, 30*time.Minute, all[1].Duration(clk.Now()))
	assert.Equal(t, 0, openCount(t, repo))
}

func TestStopWhenStopped(t *testing.T) {
	tr, _, _ := setup(t, Thresholds{})

	res, err := tr.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateStopped, res.From)
	assert.Empty(t, res.Closed)
}

func TestZeroLengthIntervalIsDropped(t *testing.T) {
	tr, repo, _ := setup(t, Thresholds{})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	_, err = tr.StartBreak(ctx)
	require.NoError(t, err)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, model.IntervalBreak, all[0].Type)
}

func TestStartAtExplicitInstant(t *testing.T) {
	tr, _, clk := setup(t, Thresholds{})
	ctx := context.Background()

	at := clk.Now().Add(-10 * time.Minute)
	res, err := tr.StartWorkAt(ctx, at)
	require.NoError(t, err)
	assert.True(t, res.Started.StartedAt.Equal(at))

	res, err = tr.StopAt(ctx, clk.Now())
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	assert.Equal(t, 10*time.Minute, res.Closed[0].Duration(clk.Now()))
}

func TestStartWhileWorkingKeepsInterval(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	first, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	res, err := tr.StartWork(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateWorking, res.From)
	assert.Equal(t, StateWorking, res.To)
	assert.Empty(t, res.Closed)
	assert.Nil(t, res.Started)
	require.NotNil(t, res.Current)
	assert.Equal(t, first.Started.Key, res.Current.Key)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// a note starts a new interval
	res, err = tr.StartWithNote(ctx, model.IntervalWork, clk.Now(), "review")
	require.NoError(t, err)
	assert.Len(t, res.Closed, 1)
	require.NotNil(t, res.Started)
	assert.Equal(t, "review", res.Started.Description)
}

func TestBackdatedTransitionBeforeOpenStart(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = tr.StartBreak(ctx)
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)

	_, err = tr.StartWorkAt(ctx, clk.Now().Add(-10*time.Minute))
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))

	_, err = tr.StopAt(ctx, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, model.IntervalWork, all[0].Type)
	assert.Equal(t, model.IntervalBreak, all[1].Type)
	assert.True(t, all[1].IsOpen())
}

func TestBackdatedStartInsideClosedInterval(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)
	_, err = tr.Stop(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	// 09:30 lies inside the closed 09:00-10:00 interval
	_, err = tr.StartWorkAt(ctx, time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC))
	require.Error(t, err)
	assert.True(t, errors.IsUserError(err))
	assert.Contains(t, err.Error(), "overlaps")
	assert.Equal(t, 0, openCount(t, repo))

	// starting where the closed interval ended is fine
	res, err := tr.StartBreakAt(ctx, time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, res.Started)

	all, err := repo.List()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, time.Hour, all[0].Duration(clk.Now()))
	assert.Equal(t, time.Hour, all[1].Duration(clk.Now()))
}

func TestStateConflictNewerTransitionWins(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	// corrupt the ledger behind the tracker's back
	require.NoError(t, repo.Create(model.NewInterval(model.IntervalWork, clk.Now().Add(-2*time.Hour), "", "")))
	require.NoError(t, repo.Create(model.NewInterval(model.IntervalBreak, clk.Now().Add(-time.Hour), "", "")))

	state, open, err := tr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOnBreak, state)
	assert.Equal(t, model.IntervalBreak, open.Type)

	res, err := tr.StartWork(ctx)
	require.NoError(t, err)
	assert.Len(t, res.Closed, 2)
	assert.Equal(t, StateOnBreak, res.From)
	assert.Equal(t, 1, openCount(t, repo))
}

func TestSingleOpenIntervalInvariant(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	ops := []func(context.Context) (*Transition, error){
		tr.StartWork, tr.StartBreak, tr.StartWork, tr.Stop, tr.Stop,
		tr.StartBreak, tr.StartBreak, tr.StartWork, tr.StartWork, tr.Stop,
	}
	for i, op := range ops {
		_, err := op(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, openCount(t, repo), 1, "after op %d", i)
		clk.Advance(time.Duration(i+1) * time.Minute)
	}
}

func TestConcurrentTransitions(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clk.Advance(time.Second)
			if i%2 == 0 {
				_, _ = tr.StartWork(ctx)
			} else {
				_, _ = tr.StartBreak(ctx)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, openCount(t, repo))
}

// =============================================================================
// Heartbeat Tests
// =============================================================================

func TestPing(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{})
	ctx := context.Background()

	iv, err := tr.Ping(ctx)
	require.NoError(t, err)
	assert.Nil(t, iv)

	res, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(15 * time.Second)

	iv, err = tr.Ping(ctx)
	require.NoError(t, err)
	require.NotNil(t, iv)

	stored, err := repo.Get(res.Started.Key)
	require.NoError(t, err)
	assert.True(t, stored.LastPingAt.Equal(clk.Now()))
	assert.True(t, stored.IsOpen())
}

func TestCheckStopTimeReset(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{Work: 10 * time.Minute, Break: time.Hour})
	ctx := context.Background()

	res, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(5 * time.Minute)
	_, err = tr.Ping(ctx)
	require.NoError(t, err)
	lastPing := clk.Now()

	clk.Advance(10 * time.Minute)
	reset, err := tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.False(t, reset, "exactly at threshold is not stale")

	clk.Advance(time.Second)
	reset, err = tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.True(t, reset)

	stored, err := repo.Get(res.Started.Key)
	require.NoError(t, err)
	require.NotNil(t, stored.EndedAt)
	assert.True(t, stored.EndedAt.Equal(lastPing))

	state, _, err := tr.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateStopped, state)

	// idempotent
	reset, err = tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestCheckStopTimeResetUsesTypeThreshold(t *testing.T) {
	tr, _, clk := setup(t, Thresholds{Work: 10 * time.Minute, Break: time.Hour})
	ctx := context.Background()

	_, err := tr.StartBreak(ctx)
	require.NoError(t, err)
	clk.Advance(30 * time.Minute)

	reset, err := tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestCheckStopTimeResetDisabled(t *testing.T) {
	tr, _, clk := setup(t, Thresholds{})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(48 * time.Hour)

	reset, err := tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.False(t, reset)
}

func TestCheckStopTimeResetWithoutPingDeletesEmptyInterval(t *testing.T) {
	tr, repo, clk := setup(t, Thresholds{Work: time.Minute})
	ctx := context.Background()

	_, err := tr.StartWork(ctx)
	require.NoError(t, err)
	clk.Advance(time.Hour)

	reset, err := tr.CheckStopTimeReset(ctx)
	require.NoError(t, err)
	assert.True(t, reset)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}
