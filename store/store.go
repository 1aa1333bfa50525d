// Package store implements the ephemeral state of the tracker: the
// open-session map and the bounded closed-session history. Both keep
// their authoritative copy in memory and write through to a shared
// BadgerDB so state survives process restarts without the durable store.
//
// Each store persists one JSON document under a fixed key, rewritten in
// full after every mutation. Poll cycles are seconds apart, so the full
// rewrite is deliberately simple rather than fast.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// ErrStoreIO marks an ephemeral persistence failure. The in-memory state
// stays authoritative; callers log and carry on.
var ErrStoreIO = errors.New("ephemeral store I/O failure")

const (
	openStateKey    = "state:open"
	historyStateKey = "state:history"
)

// Open opens (or creates) the embedded database under dir.
func Open(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening state db at %s: %w", dir, err)
	}
	return db, nil
}

func writeDoc(db *badger.DB, key string, doc []byte) error {
	err := db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), doc)
	})
	if err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrStoreIO, key, err)
	}
	return nil
}

// readDoc returns (nil, nil) when the key has never been written.
func readDoc(db *badger.DB, key string) ([]byte, error) {
	var doc []byte
	err := db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		doc, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrStoreIO, key, err)
	}
	return doc, nil
}
