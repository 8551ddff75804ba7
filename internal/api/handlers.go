package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kyukei-panda/timescribe/internal/balance"
	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
	"github.com/kyukei-panda/timescribe/internal/output"
	"github.com/kyukei-panda/timescribe/internal/parser"
	"github.com/kyukei-panda/timescribe/internal/runtime"
	"github.com/kyukei-panda/timescribe/internal/schedule"
	"github.com/kyukei-panda/timescribe/internal/storage"
)

// maxImportBytes bounds the body of an import request.
const maxImportBytes = 32 << 20

// HealthReporter contributes process checks and counters to GET /api/health.
type HealthReporter interface {
	Checks() []CheckResult
	Counters() map[string]int64
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	rt        *runtime.Context
	startedAt time.Time
	reporter  HealthReporter
}

// NewHandler creates a new handler over the runtime context.
func NewHandler(rt *runtime.Context) *Handler {
	return &Handler{rt: rt, startedAt: time.Now()}
}

// SetHealthReporter attaches the daemon's health checks.
func (h *Handler) SetHealthReporter(r HealthReporter) {
	h.reporter = r
}

// =============================================================================
// STATUS AND TIMER
// =============================================================================

// Health reports the server uptime and a database integrity check.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	check := storage.CheckIntegrity(h.rt.DB)
	resp := HealthResponse{
		Status:        "ok",
		StartedAt:     h.startedAt,
		Uptime:        output.FormatDuration(time.Since(h.startedAt)),
		Records:       check.Records,
		OpenIntervals: check.OpenIntervals,
		Errors:        check.Errors,
	}
	healthy := check.Healthy
	if h.reporter != nil {
		resp.Checks = h.reporter.Checks()
		resp.Counters = h.reporter.Counters()
		for _, c := range resp.Checks {
			healthy = healthy && c.Healthy
		}
	}
	status := http.StatusOK
	if !healthy {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// GetStatus returns the timer state with today's and this week's figures.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.rt.Status(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Transition starts work, starts a break or stops the timer.
// POST /api/timer/{action}
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")

	var req TimerRequest
	if err := decodeOptional(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	var at time.Time
	if req.At != "" {
		var err error
		if at, err = h.clock().ParseTimestamp(req.At); err != nil {
			writeError(w, r, err)
			return
		}
	}

	tr, err := h.rt.Transition(r.Context(), action, at, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tr)
}

// Ping records a heartbeat on the running interval.
// POST /api/timer/ping
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	iv, err := h.rt.Tracker.Ping(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PingResponse{Running: iv != nil, Interval: iv})
}

// =============================================================================
// AGGREGATES
// =============================================================================

// GetDay summarizes one civil day.
// GET /api/days/{date}
func (h *Handler) GetDay(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, balance.PeriodDay, h.clock().ParseDate, chi.URLParam(r, "date"))
}

// GetWeek summarizes the week containing a date.
// GET /api/weeks/{date}
func (h *Handler) GetWeek(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, balance.PeriodWeek, h.clock().ParseDate, chi.URLParam(r, "date"))
}

// GetMonth summarizes a month given as YYYY-MM.
// GET /api/months/{month}
func (h *Handler) GetMonth(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, balance.PeriodMonth, h.clock().ParseMonth, chi.URLParam(r, "month"))
}

// GetYear summarizes a year given as YYYY.
// GET /api/years/{year}
func (h *Handler) GetYear(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, balance.PeriodYear, h.clock().ParseYear, chi.URLParam(r, "year"))
}

func (h *Handler) summarize(w http.ResponseWriter, r *http.Request, period string, parse func(string) (time.Time, error), value string) {
	date, err := parse(value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.rt.Engine.Summarize(r.Context(), period, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ListBalances returns the stored weekly balances with running totals.
// GET /api/balances
func (h *Handler) ListBalances(w http.ResponseWriter, r *http.Request) {
	rows, err := h.rt.WeekBalances.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, NewBalancesResponse(rows))
}

// Recompute rebuilds the weekly balances.
// POST /api/balances/recompute
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	res, err := h.rt.Recompute(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// SCHEDULES AND ABSENCES
// =============================================================================

// ListSchedules returns every schedule version ordered by ValidFrom.
// GET /api/schedules
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.rt.Schedules.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]ScheduleDTO, len(schedules))
	for i, s := range schedules {
		dtos[i] = NewScheduleDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSchedule adds a schedule version.
// POST /api/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	validFrom, err := h.clock().ParseDate(req.ValidFrom)
	if err != nil {
		writeError(w, r, err)
		return
	}
	hours, err := parser.ParseWeekHours(req.Hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s, err := h.rt.AddSchedule(r.Context(), validFrom, hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewScheduleDTO(s))
}

// DeleteSchedule removes a schedule version.
// DELETE /api/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.rt.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAbsences returns absences, optionally limited by ?from= and ?to=.
// GET /api/absences
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var absences []*model.Absence
	if ranged {
		absences, err = h.rt.Absences.ListBetween(from, to.AddDate(0, 0, -1))
	} else {
		absences, err = h.rt.Absences.List()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos := make([]AbsenceDTO, len(absences))
	for i, a := range absences {
		dtos[i] = NewAbsenceDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAbsence adds an absence.
// POST /api/absences
func (h *Handler) CreateAbsence(w http.ResponseWriter, r *http.Request) {
	var req AbsenceRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	typ, ok := model.ParseAbsenceType(req.Type)
	if !ok {
		writeError(w, r, tserrors.InvalidInput(tserrors.ErrInvalidType, "type", req.Type))
		return
	}
	date, err := h.clock().ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if req.Duration == "" {
		req.Duration = "full"
	}
	duration, err := parser.ParseDayFraction(req.Duration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.rt.AddAbsence(r.Context(), typ, date, duration, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, NewAbsenceDTO(a))
}

// DeleteAbsence removes an absence.
// DELETE /api/absences/{id}
func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	if err := h.rt.DeleteAbsence(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// LEDGER
// =============================================================================

// ListIntervals returns recorded intervals, optionally limited by ?from=
// and ?to= (inclusive dates).
// GET /api/intervals
func (h *Handler) ListIntervals(w http.ResponseWriter, r *http.Request) {
	from, to, ranged, err := h.dateRange(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.rt.Now()
	var ivs []*model.Interval
	if ranged {
		ivs, err = h.rt.Intervals.ListOverlapping(from, to, now)
	} else {
		ivs, err = h.rt.Intervals.List()
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output.NewIntervalsResponse(ivs, now))
}

// DeleteInterval removes a recorded interval.
// DELETE /api/intervals/{id}
func (h *Handler) DeleteInterval(w http.ResponseWriter, r *http.Request) {
	if err := h.rt.DeleteInterval(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Import reconciles the request body, an export of the named source,
// against the ledger. ?dry_run=true previews without writing.
// POST /api/import/{source}
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		var err error
		if dryRun, err = strconv.ParseBool(v); err != nil {
			writeError(w, r, tserrors.NewUserErrorWithField("dry_run", v, "invalid dry_run flag", "Use dry_run=true or dry_run=false."))
			return
		}
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxImportBytes))
	if err != nil {
		writeError(w, r, tserrors.NewUserError("failed to read import body: "+err.Error(), "Exports larger than 32 MiB must be split."))
		return
	}

	res, err := h.rt.Import(r.Context(), chi.URLParam(r, "source"), raw, dryRun)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) clock() parser.Clock {
	return h.rt.Clock()
}

// dateRange reads ?from= and ?to= as inclusive dates and returns the
// half-open range. A missing bound is open-ended.
func (h *Handler) dateRange(r *http.Request) (time.Time, time.Time, bool, error) {
	q := r.URL.Query()
	fromStr, toStr := q.Get("from"), q.Get("to")
	if fromStr == "" && toStr == "" {
		return time.Time{}, time.Time{}, false, nil
	}

	clock := h.clock()
	from := time.Unix(0, 0).In(h.rt.Location)
	to := schedule.NextDay(clock.Now.In(h.rt.Location)).AddDate(100, 0, 0)
	var err error
	if fromStr != "" {
		if from, err = clock.ParseDate(fromStr); err != nil {
			return from, to, false, err
		}
	}
	if toStr != "" {
		var last time.Time
		if last, err = clock.ParseDate(toStr); err != nil {
			return from, to, false, err
		}
		to = schedule.NextDay(last)
	}
	if !to.After(from) {
		return from, to, false, tserrors.InvalidInput(tserrors.ErrEndBeforeStart, "to", toStr)
	}
	return from, to, true, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return tserrors.NewUserError("invalid request body: "+err.Error(), "Send a JSON object.")
	}
	return nil
}

// decodeOptional is decode for bodies that may be empty.
func decodeOptional(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return tserrors.NewUserError("invalid request body: "+err.Error(), "Send a JSON object.")
}
