package storage

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/kyukei-panda/timescribe/internal/model"
)

// ScheduleRepo provides operations for WorkSchedule versions.
type ScheduleRepo struct {
	db *DB
}

// NewScheduleRepo creates a new schedule repository.
func NewScheduleRepo(db *DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

var schedulePrefix = model.PrefixSchedule + ":"

// Create stores a new schedule version with a generated key.
func (r *ScheduleRepo) Create(s *model.WorkSchedule) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	s.Key = model.GenerateScheduleKey(id.String())
	return r.db.Set(s)
}

// Get retrieves a schedule by key or bare ID.
func (r *ScheduleRepo) Get(key string) (*model.WorkSchedule, error) {
	if !strings.HasPrefix(key, schedulePrefix) {
		key = model.GenerateScheduleKey(key)
	}
	s := &model.WorkSchedule{}
	if err := r.db.Get(key, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete removes a schedule by key or bare ID.
func (r *ScheduleRepo) Delete(key string) error {
	if !strings.HasPrefix(key, schedulePrefix) {
		key = model.GenerateScheduleKey(key)
	}
	exists, err := r.db.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrKeyNotFound
	}
	return r.db.Delete(key)
}

// List retrieves all schedule versions ordered by ValidFrom.
func (r *ScheduleRepo) List() ([]*model.WorkSchedule, error) {
	schedules, err := GetAllByPrefix(r.db, schedulePrefix, func() *model.WorkSchedule {
		return &model.WorkSchedule{}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(schedules, func(i, j int) bool {
		return schedules[i].ValidFrom.Before(schedules[j].ValidFrom)
	})
	return schedules, nil
}
