package api

import (
	"time"

	"github.com/kyukei-panda/timescribe/internal/model"
)

// TimerRequest is the optional body of POST /api/timer/{action}.
type TimerRequest struct {
	// At is a timestamp expression such as "9am" or "10 minutes ago".
	At   string `json:"at,omitempty"`
	Note string `json:"note,omitempty"`
}

// PingResponse is returned by POST /api/timer/ping.
type PingResponse struct {
	Running  bool            `json:"running"`
	Interval *model.Interval `json:"interval,omitempty"`
}

// ScheduleRequest creates a schedule version.
type ScheduleRequest struct {
	ValidFrom string `json:"valid_from"`
	// Hours is either one value for Monday to Friday or seven values Monday
	// first, comma separated.
	Hours string `json:"hours"`
}

// ScheduleDTO is a schedule version with its hours listed Monday first.
type ScheduleDTO struct {
	ID          string    `json:"id"`
	ValidFrom   string    `json:"valid_from"`
	Hours       [7]string `json:"hours"`
	WeeklyHours string    `json:"weekly_hours"`
}

// AbsenceRequest creates an absence.
type AbsenceRequest struct {
	Date string `json:"date"`
	Type string `json:"type"`
	// Duration is a fraction of a day: "full", "half", "0.25" or "50%".
	// Empty means a full day.
	Duration string `json:"duration,omitempty"`
	Note     string `json:"note,omitempty"`
}

// AbsenceDTO is an absence with its date as YYYY-MM-DD.
type AbsenceDTO struct {
	ID       string `json:"id"`
	Date     string `json:"date"`
	Type     string `json:"type"`
	Duration string `json:"duration"`
	Note     string `json:"note,omitempty"`
}

// BalanceDTO is one stored week with the running total up to it.
type BalanceDTO struct {
	StartWeekAt  string `json:"start_week_at"`
	EndWeekAt    string `json:"end_week_at"`
	WorkSeconds  int64  `json:"work_seconds"`
	PlanSeconds  int64  `json:"plan_seconds"`
	Balance      int64  `json:"balance"`
	RunningTotal int64  `json:"running_total"`
}

// BalancesResponse lists the stored weekly balances.
type BalancesResponse struct {
	Weeks        []BalanceDTO `json:"weeks"`
	TotalSeconds int64        `json:"total_seconds"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status        string    `json:"status"`
	StartedAt     time.Time `json:"started_at"`
	Uptime        string    `json:"uptime"`
	Records       int       `json:"records"`
	OpenIntervals int       `json:"open_intervals"`
	Errors        []string  `json:"errors,omitempty"`

	Checks   []CheckResult    `json:"checks,omitempty"`
	Counters map[string]int64 `json:"counters,omitempty"`
}

// CheckResult is the outcome of one named health check.
type CheckResult struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// NewScheduleDTO converts a schedule version.
func NewScheduleDTO(s *model.WorkSchedule) ScheduleDTO {
	dto := ScheduleDTO{
		ID:          s.ID(),
		ValidFrom:   s.ValidFrom.Format(model.DateLayout),
		WeeklyHours: s.WeeklyHours().String(),
	}
	for i := range dto.Hours {
		dto.Hours[i] = s.HoursOn(time.Weekday((i + 1) % 7)).String()
	}
	return dto
}

// NewAbsenceDTO converts an absence.
func NewAbsenceDTO(a *model.Absence) AbsenceDTO {
	return AbsenceDTO{
		ID:       a.ID(),
		Date:     a.DateString(),
		Type:     string(a.Type),
		Duration: a.Duration.String(),
		Note:     a.Note,
	}
}

// NewBalancesResponse adds the running total to each stored week.
func NewBalancesResponse(rows []*model.WeekBalance) BalancesResponse {
	resp := BalancesResponse{Weeks: make([]BalanceDTO, 0, len(rows))}
	for _, wb := range rows {
		resp.TotalSeconds += wb.Balance
		resp.Weeks = append(resp.Weeks, BalanceDTO{
			StartWeekAt:  wb.StartWeekAt.Format(model.DateLayout),
			EndWeekAt:    wb.EndWeekAt.Format(model.DateLayout),
			WorkSeconds:  wb.WorkSeconds,
			PlanSeconds:  wb.PlanSeconds,
			Balance:      wb.Balance,
			RunningTotal: resp.TotalSeconds,
		})
	}
	return resp
}
