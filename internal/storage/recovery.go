package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kyukei-panda/timescribe/internal/errors"
	"github.com/kyukei-panda/timescribe/internal/logging"
	"github.com/kyukei-panda/timescribe/internal/model"
)

// IntegrityStatus is the result of a database health check.
type IntegrityStatus struct {
	Healthy       bool      `json:"healthy"`
	CheckedAt     time.Time `json:"checked_at"`
	Records       int       `json:"records"`
	OpenIntervals int       `json:"open_intervals"`
	Errors        []string  `json:"errors,omitempty"`
}

func (s *IntegrityStatus) fail(format string, args ...any) {
	s.Healthy = false
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// CheckIntegrity decodes every stored record and checks the ledger
// invariants: closed intervals end after they start, and at most one
// interval is open.
func CheckIntegrity(d *DB) *IntegrityStatus {
	status := &IntegrityStatus{Healthy: true, CheckedAt: time.Now()}
	if d == nil || d.db == nil {
		status.fail("database not initialized")
		return status
	}

	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			status.Records++

			err := item.Value(func(val []byte) error {
				return checkRecord(status, key, val)
			})
			if err != nil {
				status.fail("unreadable value at key %s: %v", key, err)
			}
		}
		return nil
	})
	if err != nil {
		status.fail("iteration error: %v", err)
	}
	if status.OpenIntervals > 1 {
		status.fail("%d open intervals, expected at most one", status.OpenIntervals)
	}
	return status
}

func checkRecord(status *IntegrityStatus, key string, val []byte) error {
	prefix, _, _ := strings.Cut(key, ":")
	switch prefix {
	case model.PrefixInterval:
		var iv model.Interval
		if err := json.Unmarshal(val, &iv); err != nil {
			return err
		}
		if iv.IsOpen() {
			status.OpenIntervals++
		} else if !iv.EndedAt.After(iv.StartedAt) {
			status.fail("interval %s ends at or before its start", iv.ID())
		}
	case model.PrefixSchedule:
		var s model.WorkSchedule
		return json.Unmarshal(val, &s)
	case model.PrefixAbsence:
		var a model.Absence
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		if !model.ValidDuration(a.Duration) {
			status.fail("absence %s has duration %s outside (0, 1]", a.ID(), a.Duration)
		}
	case model.PrefixWeekBalance:
		var wb model.WeekBalance
		return json.Unmarshal(val, &wb)
	default:
		status.fail("unknown key %s", key)
	}
	return nil
}

// CreateBackup writes a full badger backup next to the database directory
// and returns its path.
func CreateBackup(d *DB) (string, error) {
	if d.path == "" {
		return "", fmt.Errorf("in-memory database cannot be backed up")
	}

	backupDir := filepath.Join(filepath.Dir(d.path), "backups")
	if err := os.MkdirAll(backupDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	backupPath := filepath.Join(backupDir, fmt.Sprintf("db-backup-%s.bak", time.Now().Format("20060102-150405")))
	f, err := os.Create(backupPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := d.db.Backup(f, 0); err != nil {
		return "", errors.NewSystemErrorWithOp("backup", "failed to write backup", err)
	}

	logging.Info("database backup created", logging.KeyOperation, "backup", logging.KeyPath, backupPath)
	return backupPath, nil
}

// IsDatabaseCorrupted checks if the given error indicates database corruption.
func IsDatabaseCorrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, errors.ErrDatabaseCorrupted) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"checksum mismatch", "corrupt", "unexpected eof", "bad magic", "truncated"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

func isLockError(err error) bool {
	return strings.Contains(err.Error(), "Cannot acquire directory lock")
}
