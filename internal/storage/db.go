// Package storage provides the database layer for TimeScribe.
package storage

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	badger "github.com/dgraph-io/badger/v4"

	tserrors "github.com/kyukei-panda/timescribe/internal/errors"
)

const (
	// AppName is the application name used for data directories.
	AppName = "timescribe"

	// maxTxnRetries bounds the retries of a transaction that lost a write conflict.
	maxTxnRetries = 5
)

// DB wraps a Badger database connection.
type DB struct {
	db   *badger.DB
	path string
}

// Options configures the database connection.
type Options struct {
	// Path is the database directory path. Empty string uses in-memory mode.
	Path string
	// InMemory forces in-memory mode regardless of Path.
	InMemory bool
}

// DefaultPath returns the default database path following XDG spec.
func DefaultPath() string {
	return filepath.Join(xdg.DataHome, AppName, "db")
}

// Open opens or creates a database at the given path.
func Open(opts Options) (*DB, error) {
	var badgerOpts badger.Options

	path := opts.Path
	if opts.InMemory || opts.Path == "" {
		// In-memory mode for testing
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
		path = ""
	} else {
		if err := os.MkdirAll(opts.Path, 0755); err != nil {
			return nil, err
		}
		badgerOpts = badger.DefaultOptions(opts.Path)
	}

	// Reduce logging noise
	badgerOpts = badgerOpts.WithLoggingLevel(badger.ERROR)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		switch {
		case isLockError(err):
			return nil, tserrors.Wrap(tserrors.ErrLockHeld, err.Error())
		case IsDatabaseCorrupted(err):
			return nil, tserrors.Wrap(tserrors.ErrDatabaseCorrupted, err.Error())
		}
		return nil, err
	}

	return &DB{db: db, path: path}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database directory, or an empty string for in-memory databases.
func (d *DB) Path() string {
	return d.path
}

// Badger returns the underlying Badger database for advanced operations.
func (d *DB) Badger() *badger.DB {
	return d.db
}

// update runs fn in a read-write transaction, retrying when another
// transaction committed a conflicting write first. fn must reset any state
// it captures, since it may run more than once.
func (d *DB) update(fn func(txn *badger.Txn) error) error {
	retry := tserrors.NewRecoverableError("transaction conflict", nil, maxTxnRetries)
	for retry.CanRetry {
		err := d.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		retry.Cause = err
		retry.IncrementRetry()
	}
	return retry
}
