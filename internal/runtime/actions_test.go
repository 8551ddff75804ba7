package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

func fixedContext(t *testing.T) (*Context, time.Time) {
	t.Helper()
	now := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	return newTestContext(t, Options{Now: func() time.Time { return now }}), now
}

func eightHours() [7]decimal.Decimal {
	var h [7]decimal.Decimal
	for i := 0; i < 5; i++ {
		h[i] = decimal.NewFromInt(8)
	}
	return h
}

func TestTransition(t *testing.T) {
	ctx, now := fixedContext(t)
	bg := context.Background()

	tr, err := ctx.Transition(bg, ActionWork, now.Add(-2*time.Hour), "deep work")
	require.NoError(t, err)
	assert.Equal(t, tracker.StateStopped, tr.From)
	assert.Equal(t, tracker.StateWorking, tr.To)
	assert.Equal(t, "deep work", tr.Started.Description)

	rows, err := ctx.WeekBalances.List()
	require.NoError(t, err)
	assert.Empty(t, rows, "no recompute before an interval closes")

	tr, err = ctx.Transition(bg, ActionStop, time.Time{}, "")
	require.NoError(t, err)
	assert.Equal(t, tracker.StateStopped, tr.To)
	require.Len(t, tr.Closed, 1)
	assert.Equal(t, now, *tr.Closed[0].EndedAt)

	rows, err = ctx.WeekBalances.List()
	require.NoError(t, err)
	assert.NotEmpty(t, rows)
}

func TestTransitionUnknownAction(t *testing.T) {
	ctx, _ := fixedContext(t)
	_, err := ctx.Transition(context.Background(), "nap", time.Time{}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, tserrors.ErrInvalidType)
}

func TestImport(t *testing.T) {
	raw := []byte(`[
		{"begin": "2024-03-04T09:00:00Z", "end": "2024-03-04T12:00:00Z", "notes": "a"},
		{"begin": "2024-03-04T13:00:00Z", "end": "2024-03-04T17:00:00Z", "notes": "b"}
	]`)

	t.Run("dry_run", func(t *testing.T) {
		ctx, _ := fixedContext(t)
		res, err := ctx.Import(context.Background(), "json", raw, true)
		require.NoError(t, err)
		assert.True(t, res.DryRun)
		assert.Len(t, res.Intervals, 2)
		assert.Zero(t, res.Persisted)

		ivs, err := ctx.Intervals.List()
		require.NoError(t, err)
		assert.Empty(t, ivs)
	})

	t.Run("persist", func(t *testing.T) {
		ctx, _ := fixedContext(t)
		res, err := ctx.Import(context.Background(), "json", raw, false)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Persisted)

		rows, err := ctx.WeekBalances.List()
		require.NoError(t, err)
		assert.NotEmpty(t, rows)
	})

	t.Run("unknown_source", func(t *testing.T) {
		ctx, _ := fixedContext(t)
		_, err := ctx.Import(context.Background(), "toggl", raw, false)
		assert.ErrorIs(t, err, tserrors.ErrUnknownSource)
	})

	t.Run("format_error", func(t *testing.T) {
		ctx, _ := fixedContext(t)
		_, err := ctx.Import(context.Background(), "clockify", []byte("not,a,clockify,file\n"), false)
		assert.True(t, tserrors.IsFormatError(err))
	})
}

func TestSchedules(t *testing.T) {
	ctx, _ := fixedContext(t)
	bg := context.Background()

	s, err := ctx.AddSchedule(bg, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), eightHours())
	require.NoError(t, err)
	assert.True(t, s.HoursOn(time.Monday).Equal(decimal.NewFromInt(8)))
	assert.True(t, s.HoursOn(time.Sunday).IsZero())

	require.NoError(t, ctx.DeleteSchedule(bg, s.ID()))

	err = ctx.DeleteSchedule(bg, s.ID())
	assert.ErrorIs(t, err, tserrors.ErrScheduleNotFound)
	assert.True(t, tserrors.IsUserError(err))
}

func TestAbsences(t *testing.T) {
	ctx, _ := fixedContext(t)
	bg := context.Background()
	date := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

	_, err := ctx.AddAbsence(bg, model.AbsenceVacation, date, decimal.NewFromFloat(1.5), "")
	assert.ErrorIs(t, err, tserrors.ErrInvalidDuration)

	a, err := ctx.AddAbsence(bg, model.AbsenceSick, date, decimal.NewFromFloat(0.5), "flu")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", a.DateString())

	require.NoError(t, ctx.DeleteAbsence(bg, a.ID()))
	assert.ErrorIs(t, ctx.DeleteAbsence(bg, a.ID()), tserrors.ErrAbsenceNotFound)
}

func TestDeleteIntervalAndReset(t *testing.T) {
	ctx, now := fixedContext(t)
	bg := context.Background()

	first := closedWork(now.Add(-4*time.Hour), now.Add(-3*time.Hour))
	second := closedWork(now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, ctx.Intervals.CreateMany([]*model.Interval{first, second}))

	require.NoError(t, ctx.DeleteInterval(bg, first.ID()))
	assert.ErrorIs(t, ctx.DeleteInterval(bg, first.ID()), tserrors.ErrIntervalNotFound)

	n, err := ctx.Reset(bg)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err := ctx.WeekBalances.List()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAddInterval(t *testing.T) {
	ctx, now := fixedContext(t)
	bg := context.Background()

	iv, err := ctx.AddInterval(bg, model.IntervalWork, now.Add(-3*time.Hour), now.Add(-time.Hour), "review")
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, iv.Source)
	require.NotNil(t, iv.EndedAt)
	assert.Equal(t, now.Add(-time.Hour), *iv.EndedAt)

	rows, err := ctx.WeekBalances.List()
	require.NoError(t, err)
	assert.NotEmpty(t, rows)

	_, err = ctx.AddInterval(bg, model.IntervalBreak, now.Add(-2*time.Hour), now.Add(-90*time.Minute), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), iv.ID())

	_, err = ctx.AddInterval(bg, model.IntervalWork, now.Add(-time.Hour), now.Add(-2*time.Hour), "")
	assert.ErrorIs(t, err, tserrors.ErrEndBeforeStart)

	_, err = ctx.AddInterval(bg, model.IntervalWork, now.Add(-time.Minute), now.Add(time.Hour), "")
	require.Error(t, err)
	assert.True(t, tserrors.IsUserError(err))
}
