package importer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type pair struct {
	Start, End string
}

func pairsOf(ivs []*model.Interval) []pair {
	out := make([]pair, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, pair{
			Start: iv.StartedAt.UTC().Format("2006-01-02 15:04:05.000"),
			End:   iv.EndedAt.UTC().Format("2006-01-02 15:04:05.000"),
		})
	}
	return out
}

func setup(t *testing.T) (*Reconciler, *storage.IntervalRepo) {
	db, err := storage.Open(storage.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := storage.NewIntervalRepo(db)
	return NewReconciler(repo, time.UTC, func() time.Time { return testNow }), repo
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func closed(start, end string) *model.Interval {
	iv := model.NewInterval(model.IntervalWork, at(start), "", "")
	iv.Close(at(end))
	return iv
}

func clockifyCSV(rows ...string) []byte {
	header := `Project,Client,Description,Task,User,Group,Email,Tags,Billable,Start Date,Start Time,End Date,End Time,Duration (h),Duration (decimal),Billable Rate (USD),Billable Amount (USD)`
	return []byte(header + "\n" + strings.Join(rows, "\n") + "\n")
}

// clockifyRow builds a data row with the given description and times.
func clockifyRow(desc, startDate, startTime, endDate, endTime string) string {
	return strings.Join([]string{
		"Acme", "Acme Inc", desc, "", "Jane", "", "jane@example.com", "", "Yes",
		startDate, startTime, endDate, endTime, "01:00:00", "1.00", "0.00", "0.00",
	}, ",")
}

// =============================================================================
// Source Tests
// =============================================================================

func TestNewSource(t *testing.T) {
	src, err := NewSource("Clockify", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, SourceClockify, src.Name())

	src, err = NewSource("json", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, SourceJSON, src.Name())

	_, err = NewSource("toggl", time.UTC)
	assert.True(t, errors.Is(err, errors.ErrUnknownSource))
	assert.Equal(t, []string{"clockify", "json"}, Names())
}

func TestClockifyVerifyRejectsWrongColumnCount(t *testing.T) {
	src := NewClockifyCSV(time.UTC)
	err := src.Verify([]byte("Start Date,Start Time,End Date,End Time\n01/02/2024,09:00,01/02/2024,10:00\n"))
	require.Error(t, err)
	assert.True(t, errors.IsFormatError(err))
}

func TestClockifyVerifyRejectsUnknownHeader(t *testing.T) {
	src := NewClockifyCSV(time.UTC)
	raw := clockifyCSV(clockifyRow("x", "01/02/2024", "09:00", "01/02/2024", "10:00"))
	raw = []byte(strings.Replace(string(raw), "Start Date", "Begin", 1))
	err := src.Verify(raw)
	assert.True(t, errors.IsFormatError(err))
}

func TestClockifyVerifyRejectsUnknownDatePattern(t *testing.T) {
	src := NewClockifyCSV(time.UTC)
	err := src.Verify(clockifyCSV(clockifyRow("x", "someday", "09:00", "someday", "10:00")))
	assert.True(t, errors.IsFormatError(err))
}

func TestClockifyRows(t *testing.T) {
	src := NewClockifyCSV(time.UTC)
	raw := clockifyCSV(
		clockifyRow("Design", "01/02/2024", "09:00:00 AM", "01/02/2024", "10:30:00 AM"),
		clockifyRow("Review", "01/02/2024", "1:15 PM", "01/02/2024", "2:00 PM"),
		clockifyRow("Broken", "never", "nonsense", "01/02/2024", "2:00 PM"),
	)
	require.NoError(t, src.Verify(raw))

	rows, rowErrs := src.Rows(raw)
	require.Len(t, rows, 2)
	require.Len(t, rowErrs, 1)
	assert.Equal(t, 4, rowErrs[0].Row)

	assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), rows[0].Start)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 30, 0, 0, time.UTC), rows[0].End)
	assert.Equal(t, "Design", rows[0].Description)
	assert.Equal(t, time.Date(2024, 1, 2, 13, 15, 0, 0, time.UTC), rows[1].Start)
}

func TestClockifyDetectsDayFirstDates(t *testing.T) {
	src := NewClockifyCSV(time.UTC)
	raw := clockifyCSV(
		clockifyRow("a", "02/01/2024", "09:00", "02/01/2024", "10:00"),
		clockifyRow("b", "25/01/2024", "09:00", "25/01/2024", "10:00"),
	)
	rows, rowErrs := src.Rows(raw)
	require.Empty(t, rowErrs)
	require.Len(t, rows, 2)
	assert.Equal(t, time.January, rows[0].Start.Month())
	assert.Equal(t, 2, rows[0].Start.Day())
}

func TestJSONEntriesBothShapes(t *testing.T) {
	src := NewJSONEntries(time.UTC)
	wrapped := []byte(`{"entries":[{"begin":"2024-01-02T09:00:00Z","end":"2024-01-02T10:00:00Z","notes":"standup"}]}`)
	bare := []byte(`[{"begin":"2024-01-02T09:00:00Z","end":"2024-01-02T10:00:00Z","notes":"standup"}]`)

	for _, raw := range [][]byte{wrapped, bare} {
		require.NoError(t, src.Verify(raw))
		rows, rowErrs := src.Rows(raw)
		require.Empty(t, rowErrs)
		require.Len(t, rows, 1)
		assert.Equal(t, "standup", rows[0].Description)
	}
}

func TestJSONEntriesRowErrors(t *testing.T) {
	src := NewJSONEntries(time.UTC)
	raw := []byte(`[
		{"begin":"2024-01-02T09:00:00Z","end":""},
		{"begin":"2024-01-02T11:00:00Z","end":"2024-01-02T10:00:00Z"},
		{"begin":"2024-01-02T12:00:00Z","end":"2024-01-02T13:00:00Z"}
	]`)
	rows, rowErrs := src.Rows(raw)
	assert.Len(t, rows, 1)
	require.Len(t, rowErrs, 2)
	assert.True(t, errors.Is(rowErrs[1], errors.ErrEndBeforeStart))
}

func TestJSONEntriesVerify(t *testing.T) {
	src := NewJSONEntries(time.UTC)
	assert.True(t, errors.IsFormatError(src.Verify([]byte(`{"foo": 1}`))))
	assert.True(t, errors.IsFormatError(src.Verify([]byte(`not json`))))
	assert.True(t, errors.IsFormatError(src.Verify(nil)))
}

// =============================================================================
// Reconciler Tests
// =============================================================================

func entriesJSON(spans ...[2]string) []byte {
	type entry struct {
		Begin string `json:"begin"`
		End   string `json:"end"`
	}
	var entries []entry
	for _, s := range spans {
		entries = append(entries, entry{
			Begin: at(s[0]).Format(time.RFC3339),
			End:   at(s[1]).Format(time.RFC3339),
		})
	}
	raw, _ := json.Marshal(entries)
	return raw
}

func TestImportSplitsAroundExistingInterval(t *testing.T) {
	rec, repo := setup(t)
	require.NoError(t, repo.Create(closed("2024-01-02 10:00", "2024-01-02 11:00")))

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-02 09:30", "2024-01-02 11:30"}), Options{})
	require.NoError(t, err)

	want := []pair{
		{"2024-01-02 09:30:00.000", "2024-01-02 10:00:00.000"},
		{"2024-01-02 11:00:00.000", "2024-01-02 11:30:00.000"},
	}
	if diff := cmp.Diff(want, pairsOf(res.Intervals)); diff != "" {
		t.Errorf("imported intervals mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, res.Persisted)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)
	for _, iv := range res.Intervals {
		assert.Equal(t, SourceJSON, iv.Source)
		assert.Equal(t, model.IntervalWork, iv.Type)
		assert.True(t, iv.LastPingAt.Equal(*iv.EndedAt))
	}
}

func TestImportCollisionCases(t *testing.T) {
	tests := []struct {
		name string
		row  [2]string
		want []pair
	}{
		{
			name: "inside existing is dropped",
			row:  [2]string{"2024-01-02 10:15", "2024-01-02 10:45"},
			want: []pair{},
		},
		{
			name: "overlapping head is clamped",
			row:  [2]string{"2024-01-02 09:00", "2024-01-02 10:30"},
			want: []pair{{"2024-01-02 09:00:00.000", "2024-01-02 10:00:00.000"}},
		},
		{
			name: "overlapping tail is clamped",
			row:  [2]string{"2024-01-02 10:30", "2024-01-02 12:00"},
			want: []pair{{"2024-01-02 11:00:00.000", "2024-01-02 12:00:00.000"}},
		},
		{
			name: "no overlap is kept",
			row:  [2]string{"2024-01-02 12:00", "2024-01-02 13:00"},
			want: []pair{{"2024-01-02 12:00:00.000", "2024-01-02 13:00:00.000"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, repo := setup(t)
			require.NoError(t, repo.Create(closed("2024-01-02 10:00", "2024-01-02 11:00")))

			res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC), entriesJSON(tt.row), Options{})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, pairsOf(res.Intervals)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestImportSpanningSeveralStoredIntervals(t *testing.T) {
	rec, repo := setup(t)
	require.NoError(t, repo.Create(closed("2024-01-02 09:00", "2024-01-02 10:00")))
	require.NoError(t, repo.Create(closed("2024-01-02 11:00", "2024-01-02 12:00")))

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-02 08:00", "2024-01-02 13:00"}), Options{})
	require.NoError(t, err)

	want := []pair{
		{"2024-01-02 08:00:00.000", "2024-01-02 09:00:00.000"},
		{"2024-01-02 10:00:00.000", "2024-01-02 11:00:00.000"},
		{"2024-01-02 12:00:00.000", "2024-01-02 13:00:00.000"},
	}
	if diff := cmp.Diff(want, pairsOf(res.Intervals)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestImportSplitsAtMidnight(t *testing.T) {
	rec, _ := setup(t)

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-01 23:00", "2024-01-02 01:00"}), Options{})
	require.NoError(t, err)

	want := []pair{
		{"2024-01-01 23:00:00.000", "2024-01-01 23:59:59.999"},
		{"2024-01-02 00:00:00.000", "2024-01-02 01:00:00.000"},
	}
	if diff := cmp.Diff(want, pairsOf(res.Intervals)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestImportEndingAtMidnightIsNotSplit(t *testing.T) {
	rec, _ := setup(t)

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-01 22:00", "2024-01-02 00:00"}), Options{})
	require.NoError(t, err)
	assert.Len(t, res.Intervals, 1)
}

func TestImportTwiceAddsNothing(t *testing.T) {
	rec, repo := setup(t)
	raw := entriesJSON(
		[2]string{"2024-01-01 23:00", "2024-01-02 01:00"},
		[2]string{"2024-01-02 09:00", "2024-01-02 12:00"},
	)

	first, err := rec.Import(context.Background(), NewJSONEntries(time.UTC), raw, Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Persisted)

	second, err := rec.Import(context.Background(), NewJSONEntries(time.UTC), raw, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Persisted)
	assert.Empty(t, second.Intervals)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestImportBatchRowsNeverOverlap(t *testing.T) {
	rec, _ := setup(t)

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC), entriesJSON(
		[2]string{"2024-01-02 09:00", "2024-01-02 12:00"},
		// wholly inside the previous row after sorting
		[2]string{"2024-01-02 10:00", "2024-01-02 11:00"},
		[2]string{"2024-01-02 11:30", "2024-01-02 13:00"},
		// exact duplicate
		[2]string{"2024-01-02 09:00", "2024-01-02 12:00"},
	), Options{})
	require.NoError(t, err)

	want := []pair{
		{"2024-01-02 09:00:00.000", "2024-01-02 12:00:00.000"},
		{"2024-01-02 12:00:00.000", "2024-01-02 13:00:00.000"},
	}
	if diff := cmp.Diff(want, pairsOf(res.Intervals)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, res.Dropped)
}

func TestImportFormatErrorWritesNothing(t *testing.T) {
	rec, repo := setup(t)

	_, err := rec.Import(context.Background(), NewClockifyCSV(time.UTC), []byte("a,b,c\n1,2,3\n"), Options{})
	require.Error(t, err)
	assert.True(t, errors.IsFormatError(err))

	all, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportSkipsBadRows(t *testing.T) {
	rec, _ := setup(t)
	raw := clockifyCSV(
		clockifyRow("ok", "01/02/2024", "09:00", "01/02/2024", "10:00"),
		clockifyRow("bad", "never", "xx:yy", "01/02/2024", "10:00"),
	)

	res, err := rec.Import(context.Background(), NewClockifyCSV(time.UTC), raw, Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Persisted)
	assert.Equal(t, SourceClockify, res.Intervals[0].Source)
	assert.Equal(t, "ok", res.Intervals[0].Description)
}

func TestImportDryRun(t *testing.T) {
	rec, repo := setup(t)

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-02 09:00", "2024-01-02 10:00"}), Options{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Intervals, 1)
	assert.Equal(t, 0, res.Persisted)

	all, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportAgainstOpenInterval(t *testing.T) {
	rec, repo := setup(t)
	// running since 11:00, so it covers [11:00, now)
	require.NoError(t, repo.Create(model.NewInterval(model.IntervalWork, at("2024-03-01 11:00"), "", "")))

	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-03-01 10:00", "2024-03-01 11:30"}), Options{})
	require.NoError(t, err)

	want := []pair{{"2024-03-01 10:00:00.000", "2024-03-01 11:00:00.000"}}
	if diff := cmp.Diff(want, pairsOf(res.Intervals)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestImportResultJSON(t *testing.T) {
	rec, _ := setup(t)
	res, err := rec.Import(context.Background(), NewJSONEntries(time.UTC),
		entriesJSON([2]string{"2024-01-02 09:00", "2024-01-02 10:00"}), Options{DryRun: true})
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"source":"json"`)
	assert.Contains(t, string(raw), `"dry_run":true`)
}
