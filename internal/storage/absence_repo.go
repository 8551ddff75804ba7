package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kyukei-panda/timescribe/internal/model"
)

// AbsenceRepo provides operations for the absence calendar.
type AbsenceRepo struct {
	db *DB
}

// NewAbsenceRepo creates a new absence repository.
func NewAbsenceRepo(db *DB) *AbsenceRepo {
	return &AbsenceRepo{db: db}
}

var absencePrefix = model.PrefixAbsence + ":"

// Create stores a new absence with a generated key.
func (r *AbsenceRepo) Create(a *model.Absence) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	a.Key = model.GenerateAbsenceKey(id.String())
	return r.db.Set(a)
}

// Delete removes an absence by key or bare ID.
func (r *AbsenceRepo) Delete(key string) error {
	if !strings.HasPrefix(key, absencePrefix) {
		key = model.GenerateAbsenceKey(key)
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

// List retrieves all absences ordered by date.
func (r *AbsenceRepo) List() ([]*model.Absence, error) {
	return r.list(nil)
}

// ListBetween retrieves the absences whose civil date lies in [from, to],
// comparing calendar dates only.
func (r *AbsenceRepo) ListBetween(from, to time.Time) ([]*model.Absence, error) {
	lo, hi := from.Format(model.DateLayout), to.Format(model.DateLayout)
	return r.list(func(a *model.Absence) bool {
		d := a.DateString()
		return d >= lo && d <= hi
	})
}

func (r *AbsenceRepo) list(filter func(*model.Absence) bool) ([]*model.Absence, error) {
	absences, err := GetFilteredByPrefix(r.db, absencePrefix, func() *model.Absence {
		return &model.Absence{}
	}, filter, 0)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(absences, func(i, j int) bool {
		return absences[i].DateString() < absences[j].DateString()
	})
	return absences, nil
}
