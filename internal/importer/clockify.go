package importer

import (
	"bytes"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kyukei-panda/timescribe/internal/errors"
)

// clockifyColumns is the header of a Clockify detailed report export.
var clockifyColumns = []string{
	"Project", "Client", "Description", "Task", "User", "Group", "Email",
	"Tags", "Billable", "Start Date", "Start Time", "End Date", "End Time",
	"Duration (h)", "Duration (decimal)", "Billable Rate", "Billable Amount",
}

const (
	colDescription = 2
	colStartDate   = 9
	colStartTime   = 10
	colEndDate     = 11
	colEndTime     = 12
)

// Date layouts tried in order. Clockify writes the date in the account's
// locale, so the layout is detected once per file.
var clockifyDateLayouts = []string{
	"01/02/2006",
	"02/01/2006",
	"2006-01-02",
	"02.01.2006",
}

var clockifyTimeLayouts = []string{
	"3:04:05 PM",
	"15:04:05",
	"15:04",
	"3:04 PM",
}

// ClockifyCSV reads Clockify detailed report exports.
type ClockifyCSV struct {
	loc *time.Location
}

// NewClockifyCSV creates a Clockify source reading wall-clock times in loc.
func NewClockifyCSV(loc *time.Location) *ClockifyCSV {
	if loc == nil {
		loc = time.Local
	}
	return &ClockifyCSV{loc: loc}
}

// Name returns the source name.
func (c *ClockifyCSV) Name() string {
	return SourceClockify
}

func (c *ClockifyCSV) records(raw []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(raw, []byte("\ufeff"))))
	r.FieldsPerRecord = len(clockifyColumns)
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if stderrors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, errors.NewFormatError(SourceClockify, line, err.Error())
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, errors.NewFormatError(SourceClockify, 0, "empty file")
	}
	return records, nil
}

func headerMatches(header []string) (int, bool) {
	for i, want := range clockifyColumns {
		got := strings.TrimSpace(header[i])
		// Billable columns carry the currency, e.g. "Billable Rate (USD)".
		if got != want && !strings.HasPrefix(got, want+" (") {
			return i, false
		}
	}
	return 0, true
}

// detectDateLayout returns the first layout that parses every date cell, or
// failing that the one that parses the most.
func detectDateLayout(rows [][]string) (string, bool) {
	best, bestCount := "", 0
	for _, layout := range clockifyDateLayouts {
		count := 0
		for _, rec := range rows {
			_, e1 := time.Parse(layout, strings.TrimSpace(rec[colStartDate]))
			_, e2 := time.Parse(layout, strings.TrimSpace(rec[colEndDate]))
			if e1 == nil && e2 == nil {
				count++
			}
		}
		if count == len(rows) {
			return layout, true
		}
		if count > bestCount {
			best, bestCount = layout, count
		}
	}
	return best, bestCount > 0
}

// Verify checks the column layout and that the date columns follow a known
// pattern.
func (c *ClockifyCSV) Verify(raw []byte) error {
	records, err := c.records(raw)
	if err != nil {
		return err
	}
	if i, ok := headerMatches(records[0]); !ok {
		return errors.NewFormatError(SourceClockify, 1,
			fmt.Sprintf("column %d is %q, expected %q", i+1, records[0][i], clockifyColumns[i]))
	}
	if len(records) > 1 {
		if _, ok := detectDateLayout(records[1:]); !ok {
			return errors.NewFormatError(SourceClockify, 0, "no recognizable date pattern")
		}
	}
	return nil
}

// Rows parses the data rows. A row whose start or end cannot be read is
// reported and skipped.
func (c *ClockifyCSV) Rows(raw []byte) ([]Row, []*errors.RowError) {
	records, err := c.records(raw)
	if err != nil || len(records) < 2 {
		return nil, nil
	}
	data := records[1:]
	layout, _ := detectDateLayout(data)

	var rows []Row
	var rowErrs []*errors.RowError
	for i, rec := range data {
		line := i + 2
		start, err := c.parse(layout, rec[colStartDate], rec[colStartTime])
		if err != nil {
			rowErrs = append(rowErrs, errors.NewRowError(line, "start", rec[colStartDate]+" "+rec[colStartTime], err))
			continue
		}
		end, err := c.parse(layout, rec[colEndDate], rec[colEndTime])
		if err != nil {
			rowErrs = append(rowErrs, errors.NewRowError(line, "end", rec[colEndDate]+" "+rec[colEndTime], err))
			continue
		}
		if !end.After(start) {
			rowErrs = append(rowErrs, errors.NewRowError(line, "end", rec[colEndDate]+" "+rec[colEndTime], errors.ErrEndBeforeStart))
			continue
		}
		rows = append(rows, Row{
			Line:        line,
			Start:       start,
			End:         end,
			Description: strings.TrimSpace(rec[colDescription]),
		})
	}
	return rows, rowErrs
}

func (c *ClockifyCSV) parse(dateLayout, date, clock string) (time.Time, error) {
	date, clock = strings.TrimSpace(date), strings.TrimSpace(clock)
	if dateLayout != "" {
		for _, tl := range clockifyTimeLayouts {
			if t, err := time.ParseInLocation(dateLayout+" "+tl, date+" "+clock, c.loc); err == nil {
				return t, nil
			}
		}
	}
	return parseLoose(date+" "+clock, c.loc)
}
