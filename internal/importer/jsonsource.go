package importer

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/kyukei-panda/timescribe/internal/errors"
)

// jsonEntry is one record of a JSON time log, as written by Zeit and
// similar trackers.
type jsonEntry struct {
	Begin string `json:"begin"`
	End   string `json:"end"`
	Notes string `json:"notes"`
}

type jsonExport struct {
	Entries []jsonEntry `json:"entries"`
}

// JSONEntries reads a JSON array of entries, bare or wrapped in
// {"entries": [...]}.
type JSONEntries struct {
	loc *time.Location
}

// NewJSONEntries creates a JSON source reading offset-less times in loc.
func NewJSONEntries(loc *time.Location) *JSONEntries {
	if loc == nil {
		loc = time.Local
	}
	return &JSONEntries{loc: loc}
}

// Name returns the source name.
func (j *JSONEntries) Name() string {
	return SourceJSON
}

func (j *JSONEntries) entries(raw []byte) ([]jsonEntry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.NewFormatError(SourceJSON, 0, "empty file")
	}

	if raw[0] == '[' {
		var entries []jsonEntry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, errors.NewFormatError(SourceJSON, 0, err.Error())
		}
		return entries, nil
	}

	var export jsonExport
	if err := json.Unmarshal(raw, &export); err != nil {
		return nil, errors.NewFormatError(SourceJSON, 0, err.Error())
	}
	if export.Entries == nil {
		return nil, errors.NewFormatError(SourceJSON, 0, `missing "entries" array`)
	}
	return export.Entries, nil
}

// Verify checks that raw decodes to a list of entries.
func (j *JSONEntries) Verify(raw []byte) error {
	_, err := j.entries(raw)
	return err
}

// Rows parses every entry. Entries without an end are still running in the
// exporting tool and are reported as row errors.
func (j *JSONEntries) Rows(raw []byte) ([]Row, []*errors.RowError) {
	entries, err := j.entries(raw)
	if err != nil {
		return nil, nil
	}

	var rows []Row
	var rowErrs []*errors.RowError
	for i, e := range entries {
		line := i + 1
		start, err := j.parse(e.Begin)
		if err != nil {
			rowErrs = append(rowErrs, errors.NewRowError(line, "begin", e.Begin, err))
			continue
		}
		end, err := j.parse(e.End)
		if err != nil {
			rowErrs = append(rowErrs, errors.NewRowError(line, "end", e.End, err))
			continue
		}
		if !end.After(start) {
			rowErrs = append(rowErrs, errors.NewRowError(line, "end", e.End, errors.ErrEndBeforeStart))
			continue
		}
		rows = append(rows, Row{
			Line:        line,
			Start:       start,
			End:         end,
			Description: strings.TrimSpace(e.Notes),
		})
	}
	return rows, rowErrs
}

func (j *JSONEntries) parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.ErrInvalidTimestamp
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return parseLoose(s, j.loc)
}
