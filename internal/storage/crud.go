package storage

import (
	"encoding/json"
	"errors"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/kyukei-panda/timescribe/internal/model"
)

var (
	// ErrKeyNotFound is returned when a key is not found in the database.
	ErrKeyNotFound = errors.New("key not found")
)

// IsErrKeyNotFound returns true if the error is a key not found error.
func IsErrKeyNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound) || errors.Is(err, badger.ErrKeyNotFound)
}

// Get retrieves a value by key and unmarshals it into v.
func (d *DB) Get(key string, v model.Model) error {
	return d.db.View(func(txn *badger.Txn) error {
		return getTxn(txn, key, v)
	})
}

// Set stores a model in the database.
func (d *DB) Set(v model.Model) error {
	return d.update(func(txn *badger.Txn) error {
		return setTxn(txn, v)
	})
}

// Delete removes a key from the database.
func (d *DB) Delete(key string) error {
	return d.update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Exists checks if a key exists in the database.
func (d *DB) Exists(key string) (bool, error) {
	var exists bool
	err := d.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// ListByPrefix retrieves all keys with the given prefix.
func (d *DB) ListByPrefix(prefix string) ([]string, error) {
	var keys []string
	err := d.db.View(func(txn *badger.Txn) error {
		keys = keysTxn(txn, prefix)
		return nil
	})
	return keys, err
}

// DeleteByPrefix removes every key with the given prefix and returns how many were removed.
func (d *DB) DeleteByPrefix(prefix string) (int, error) {
	var count int
	err := d.update(func(txn *badger.Txn) error {
		count = 0
		for _, key := range keysTxn(txn, prefix) {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	return count, err
}

// GetAllByPrefix retrieves all values with the given prefix.
func GetAllByPrefix[T model.Model](d *DB, prefix string, newFunc func() T) ([]T, error) {
	return GetFilteredByPrefix(d, prefix, newFunc, nil, 0)
}

// GetFilteredByPrefix retrieves the values with the given prefix accepted by
// filter. A nil filter accepts everything; a positive limit stops early.
func GetFilteredByPrefix[T model.Model](d *DB, prefix string, newFunc func() T, filter func(T) bool, limit int) ([]T, error) {
	var results []T
	err := d.db.View(func(txn *badger.Txn) error {
		var err error
		results, err = scanTxn(txn, prefix, newFunc, filter, limit)
		return err
	})
	return results, err
}

func getTxn(txn *badger.Txn, key string, v model.Model) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrKeyNotFound
		}
		return err
	}

	return item.Value(func(val []byte) error {
		if err := json.Unmarshal(val, v); err != nil {
			return err
		}
		v.SetKey(key)
		return nil
	})
}

func setTxn(txn *badger.Txn, v model.Model) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set([]byte(v.GetKey()), data)
}

func keysTxn(txn *badger.Txn, prefix string) []string {
	var keys []string
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	prefixBytes := []byte(prefix)
	for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
		keys = append(keys, string(it.Item().KeyCopy(nil)))
	}
	return keys
}

func scanTxn[T model.Model](txn *badger.Txn, prefix string, newFunc func() T, filter func(T) bool, limit int) ([]T, error) {
	var results []T
	opts := badger.DefaultIteratorOptions
	opts.PrefetchSize = 100
	it := txn.NewIterator(opts)
	defer it.Close()

	prefixBytes := []byte(prefix)
	for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
		item := it.Item()
		v := newFunc()
		err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, v)
		})
		if err != nil {
			return nil, err
		}
		v.SetKey(string(item.KeyCopy(nil)))

		if filter != nil && !filter(v) {
			continue
		}
		results = append(results, v)
		if limit > 0 && len(results) >= limit {
			break
		}
	}
	return results, nil
}
