package storage

import (
	"sort"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/model"
)

// IntervalRepo provides operations for the timestamp ledger.
type IntervalRepo struct {
	db *DB
}

// NewIntervalRepo creates a new interval repository.
func NewIntervalRepo(db *DB) *IntervalRepo {
	return &IntervalRepo{db: db}
}

var intervalPrefix = model.PrefixInterval + ":"

func newInterval() *model.Interval {
	return &model.Interval{}
}

// assignKey generates a UUID v7 key, which keeps keys roughly time-sortable.
func assignKey(iv *model.Interval) error {
	if iv.Key != "" {
		return nil
	}
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	iv.Key = model.GenerateIntervalKey(id.String())
	return nil
}

// Create stores a new interval with a generated key.
func (r *IntervalRepo) Create(iv *model.Interval) error {
	if err := assignKey(iv); err != nil {
		return err
	}
	return r.db.Set(iv)
}

// CreateMany stores all intervals in a single transaction.
func (r *IntervalRepo) CreateMany(ivs []*model.Interval) error {
	for _, iv := range ivs {
		if err := assignKey(iv); err != nil {
			return err
		}
	}
	return r.db.update(func(txn *badger.Txn) error {
		for _, iv := range ivs {
			if err := setTxn(txn, iv); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves an interval by key or bare ID.
func (r *IntervalRepo) Get(key string) (*model.Interval, error) {
	iv := &model.Interval{}
	if err := r.db.Get(normalizeIntervalKey(key), iv); err != nil {
		return nil, err
	}
	return iv, nil
}

// Update updates an existing interval.
func (r *IntervalRepo) Update(iv *model.Interval) error {
	return r.db.Set(iv)
}

// Delete removes an interval by key or bare ID.
func (r *IntervalRepo) Delete(key string) error {
	key = normalizeIntervalKey(key)
	exists, err := r.db.Exists(key)
	if err != nil {
		return err
	}
	if !exists {
		return ErrKeyNotFound
	}
	return r.db.Delete(key)
}

// DeleteAll removes the whole ledger.
func (r *IntervalRepo) DeleteAll() (int, error) {
	return r.db.DeleteByPrefix(intervalPrefix)
}

// List retrieves all intervals ordered by start time.
func (r *IntervalRepo) List() ([]*model.Interval, error) {
	ivs, err := GetAllByPrefix(r.db, intervalPrefix, newInterval)
	if err != nil {
		return nil, err
	}
	sortByStart(ivs)
	return ivs, nil
}

// ListOverlapping retrieves the intervals intersecting [start, end), ordered
// by start time. Open intervals are treated as ending at now.
func (r *IntervalRepo) ListOverlapping(start, end, now time.Time) ([]*model.Interval, error) {
	ivs, err := GetFilteredByPrefix(r.db, intervalPrefix, newInterval, func(iv *model.Interval) bool {
		return iv.Overlaps(start, end, now)
	}, 0)
	if err != nil {
		return nil, err
	}
	sortByStart(ivs)
	return ivs, nil
}

// ListOpen retrieves every interval without an end time. A healthy ledger
// has at most one.
func (r *IntervalRepo) ListOpen() ([]*model.Interval, error) {
	ivs, err := GetFilteredByPrefix(r.db, intervalPrefix, newInterval, func(iv *model.Interval) bool {
		return iv.IsOpen()
	}, 0)
	if err != nil {
		return nil, err
	}
	sortByStart(ivs)
	return ivs, nil
}

// GetOpen returns the most recently started open interval, or nil.
func (r *IntervalRepo) GetOpen() (*model.Interval, error) {
	open, err := r.ListOpen()
	if err != nil || len(open) == 0 {
		return nil, err
	}
	return open[len(open)-1], nil
}

// Earliest returns the interval with the smallest start time, or nil when
// the ledger is empty.
func (r *IntervalRepo) Earliest() (*model.Interval, error) {
	var earliest *model.Interval
	_, err := GetFilteredByPrefix(r.db, intervalPrefix, newInterval, func(iv *model.Interval) bool {
		if earliest == nil || iv.StartedAt.Before(earliest.StartedAt) {
			earliest = iv
		}
		return false
	}, 0)
	return earliest, err
}

// ReplaceOpen closes every open interval at the given instant and stores
// next as the new open interval, all in one transaction. The closed
// intervals are returned.
//
// at must not precede the start of an open interval; closing exactly at the
// start deletes the zero-length interval instead. next must not start inside
// or before a closed interval, since it runs until now.
func (r *IntervalRepo) ReplaceOpen(at time.Time, next *model.Interval) ([]*model.Interval, error) {
	if next != nil {
		if err := assignKey(next); err != nil {
			return nil, err
		}
	}

	var closed []*model.Interval
	err := r.db.update(func(txn *badger.Txn) error {
		closed = nil
		all, err := scanTxn(txn, intervalPrefix, newInterval, nil, 0)
		if err != nil {
			return err
		}

		var open []*model.Interval
		for _, iv := range all {
			if !iv.IsOpen() {
				if next != nil && iv.EndedAt.After(next.StartedAt) {
					return tserrors.NewUserErrorWithField("at", next.StartedAt.Format(time.RFC3339),
						"new interval overlaps recorded interval "+iv.ID(),
						"Choose a later time or delete the recorded interval first.")
				}
				continue
			}
			if at.Before(iv.StartedAt) {
				return tserrors.NewUserErrorWithField("at", at.Format(time.RFC3339),
					"running "+string(iv.Type)+" interval started later, at "+iv.StartedAt.Format(time.RFC3339),
					"Choose a time after the running interval started.")
			}
			open = append(open, iv)
		}

		for _, iv := range open {
			if err := closeTxn(txn, iv, at); err != nil {
				return err
			}
			closed = append(closed, iv)
		}

		if next != nil {
			return setTxn(txn, next)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortByStart(closed)
	return closed, nil
}

// CloseOpenIf closes the open interval when decide returns true, at the
// instant decide returns. It returns the interval it closed, or nil.
func (r *IntervalRepo) CloseOpenIf(decide func(iv *model.Interval) (time.Time, bool)) (*model.Interval, error) {
	var closed *model.Interval
	err := r.db.update(func(txn *badger.Txn) error {
		closed = nil
		open, err := scanTxn(txn, intervalPrefix, newInterval, func(iv *model.Interval) bool {
			return iv.IsOpen()
		}, 0)
		if err != nil || len(open) == 0 {
			return err
		}
		sortByStart(open)

		iv := open[len(open)-1]
		at, ok := decide(iv)
		if !ok {
			return nil
		}
		if err := closeTxn(txn, iv, at); err != nil {
			return err
		}
		closed = iv
		return nil
	})
	return closed, err
}

// TouchOpen records a heartbeat on the open interval and returns it, or nil
// when nothing is running.
func (r *IntervalRepo) TouchOpen(at time.Time) (*model.Interval, error) {
	var touched *model.Interval
	err := r.db.update(func(txn *badger.Txn) error {
		touched = nil
		open, err := scanTxn(txn, intervalPrefix, newInterval, func(iv *model.Interval) bool {
			return iv.IsOpen()
		}, 0)
		if err != nil || len(open) == 0 {
			return err
		}
		sortByStart(open)

		iv := open[len(open)-1]
		if at.After(iv.LastPingAt) {
			iv.LastPingAt = at
		}
		touched = iv
		return setTxn(txn, iv)
	})
	return touched, err
}

func closeTxn(txn *badger.Txn, iv *model.Interval, at time.Time) error {
	if !at.After(iv.StartedAt) {
		iv.Close(iv.StartedAt)
		return txn.Delete([]byte(iv.Key))
	}
	iv.Close(at)
	if at.After(iv.LastPingAt) {
		iv.LastPingAt = at
	}
	return setTxn(txn, iv)
}

func sortByStart(ivs []*model.Interval) {
	sort.SliceStable(ivs, func(i, j int) bool {
		return ivs[i].StartedAt.Before(ivs[j].StartedAt)
	})
}

func normalizeIntervalKey(key string) string {
	if strings.HasPrefix(key, intervalPrefix) {
		return key
	}
	return model.GenerateIntervalKey(key)
}
