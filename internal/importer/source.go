// Package importer reconciles externally recorded time logs with the
// interval ledger.
package importer

import (
	"sort"
	"strings"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/kyukei-panda/timescribe/internal/errors"
)

// Row is one parsed record of an import source.
type Row struct {
	Line        int       `json:"line"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description,omitempty"`
}

// Source turns raw bytes into rows. Verify rejects input whose structure is
// wrong before anything is written; Rows reports per-row failures without
// aborting the batch.
type Source interface {
	Name() string
	Verify(raw []byte) error
	Rows(raw []byte) ([]Row, []*errors.RowError)
}

// Source names accepted by NewSource.
const (
	SourceClockify = "clockify"
	SourceJSON     = "json"
)

// Names returns the supported source names, sorted.
func Names() []string {
	names := []string{SourceClockify, SourceJSON}
	sort.Strings(names)
	return names
}

// NewSource returns the named source. Wall-clock times without an offset are
// interpreted in loc.
func NewSource(name string, loc *time.Location) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case SourceClockify, "csv":
		return NewClockifyCSV(loc), nil
	case SourceJSON, "zeit":
		return NewJSONEntries(loc), nil
	}
	return nil, errors.InvalidInput(errors.ErrUnknownSource, "source", name)
}

// parseLoose is the last resort for timestamps the fixed layouts did not
// match. The wall clock reading is kept and re-anchored in loc.
func parseLoose(s string, loc *time.Location) (time.Time, error) {
	cfg := &dps.Configuration{
		CurrentTime: time.Now().In(loc),
	}
	dt, err := dps.Parse(cfg, s)
	if err != nil {
		return time.Time{}, err
	}
	t := dt.Time
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc), nil
}
