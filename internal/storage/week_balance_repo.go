package storage

import (
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kyukei-panda/timescribe/internal/model"
)

// WeekBalanceRepo provides operations for the persisted weekly balances.
type WeekBalanceRepo struct {
	db *DB
}

// NewWeekBalanceRepo creates a new week balance repository.
func NewWeekBalanceRepo(db *DB) *WeekBalanceRepo {
	return &WeekBalanceRepo{db: db}
}

var weekBalancePrefix = model.PrefixWeekBalance + ":"

// Upsert creates or replaces the row for the balance's week.
func (r *WeekBalanceRepo) Upsert(wb *model.WeekBalance) error {
	wb.Key = model.GenerateWeekBalanceKey(wb.StartWeekAt, wb.EndWeekAt)
	return r.db.Set(wb)
}

// List retrieves all week balances ordered by week start.
func (r *WeekBalanceRepo) List() ([]*model.WeekBalance, error) {
	rows, err := GetAllByPrefix(r.db, weekBalancePrefix, func() *model.WeekBalance {
		return &model.WeekBalance{}
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].StartWeekAt.Before(rows[j].StartWeekAt)
	})
	return rows, nil
}

// DeleteAll removes every persisted week balance.
func (r *WeekBalanceRepo) DeleteAll() (int, error) {
	return r.db.DeleteByPrefix(weekBalancePrefix)
}

// Sync upserts rows and deletes every stored row not among them, in one
// transaction. It returns the number of deleted rows.
func (r *WeekBalanceRepo) Sync(rows []*model.WeekBalance) (int, error) {
	keep := make(map[string]bool, len(rows))
	for _, wb := range rows {
		wb.Key = model.GenerateWeekBalanceKey(wb.StartWeekAt, wb.EndWeekAt)
		keep[wb.Key] = true
	}

	var deleted int
	err := r.db.update(func(txn *badger.Txn) error {
		deleted = 0
		for _, key := range keysTxn(txn, weekBalancePrefix) {
			if keep[key] {
				continue
			}
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			deleted++
		}
		for _, wb := range rows {
			if err := setTxn(txn, wb); err != nil {
				return err
			}
		}
		return nil
	})
	return deleted, err
}
