package output

import (
	"time"

	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/tracker"
)

// JSONFormatter provides JSON-specific formatting.
type JSONFormatter struct {
	*Formatter
}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter(f *Formatter) *JSONFormatter {
	return &JSONFormatter{Formatter: f}
}

// ErrorResponse represents an error in JSON.
type ErrorResponse struct {
	Status     string `json:"status"`
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// TransitionResponse is the JSON form of a timer transition.
type TransitionResponse struct {
	Status  string            `json:"status"`
	From    tracker.State     `json:"from"`
	To      tracker.State     `json:"to"`
	Closed  []*model.Interval `json:"closed"`
	Started *model.Interval   `json:"started,omitempty"`
	Current *model.Interval   `json:"current,omitempty"`
}

// IntervalsResponse lists ledger entries with their total length.
type IntervalsResponse struct {
	Intervals    []*model.Interval `json:"intervals"`
	Count        int               `json:"count"`
	TotalSeconds int64             `json:"total_seconds"`
}

// PrintTransition outputs a transition.
func (j *JSONFormatter) PrintTransition(tr *tracker.Transition) error {
	closed := tr.Closed
	if closed == nil {
		closed = []*model.Interval{}
	}
	return j.JSON(TransitionResponse{
		Status:  string(tr.To),
		From:    tr.From,
		To:      tr.To,
		Closed:  closed,
		Started: tr.Started,
		Current: tr.Current,
	})
}

// NewIntervalsResponse builds an IntervalsResponse. Open intervals count up
// to now.
func NewIntervalsResponse(ivs []*model.Interval, now time.Time) *IntervalsResponse {
	resp := &IntervalsResponse{Intervals: ivs, Count: len(ivs)}
	if resp.Intervals == nil {
		resp.Intervals = []*model.Interval{}
	}
	for _, iv := range ivs {
		resp.TotalSeconds += int64(iv.Duration(now) / time.Second)
	}
	return resp
}

// PrintError outputs an error in JSON format.
func (j *JSONFormatter) PrintError(status, errMsg, suggestion string) error {
	return j.JSON(ErrorResponse{
		Status:     status,
		Error:      errMsg,
		Suggestion: suggestion,
	})
}
