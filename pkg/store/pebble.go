// Package store is the embedded document store. Each entity collection
// lives under its own key namespace in a single Pebble DB:
//
//	user:<id>                         user profile JSON
//	contact:<id>                      contact record JSON
//	contactpair:<min>:<max>           pair uniqueness index -> contact id
//	discussion:<id>:meta              discussion JSON (roster embedded)
//	discussion:<id>:msg:<ts>-<seq>    message JSON, sortable by insertion
//	msgid:<id>                        message id -> storage key pointer
//	privpair:<min>:<max>              private-discussion index -> discussion id
//
// Mutations that read-modify-write a document go through the guarded
// Update* helpers so concurrent writers on the same key cannot lose
// updates.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"causerie/pkg/logger"
)

var db *pebble.DB

// seq reduces key collisions when messages share a nanosecond timestamp.
var seq uint64

// ErrNotFound is returned when a key does not resolve.
var ErrNotFound = errors.New("store: not found")

// ErrExists is returned when an insert collides with an existing record.
var ErrExists = errors.New("store: already exists")

// Open opens (or creates) a Pebble database at the given path and keeps
// a package handle for use by the collection helpers.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func notOpened() error {
	return fmt.Errorf("pebble not opened; call store.Open first")
}

// nextMessageKey builds a sortable storage key for a message in a
// discussion: discussion:<id>:msg:<unix_nano_padded>-<seq>.
func nextMessageKey(discussionID string) string {
	ts := time.Now().UTC().UnixNano()
	s := atomic.AddUint64(&seq, 1)
	return fmt.Sprintf("discussion:%s:msg:%020d-%06d", discussionID, ts, s)
}

// get reads a raw value. Returns ErrNotFound for missing keys.
func get(key string) ([]byte, error) {
	if db == nil {
		return nil, notOpened()
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	out := append([]byte(nil), v...)
	if closer != nil {
		_ = closer.Close()
	}
	return out, nil
}

func set(key string, value []byte) error {
	if db == nil {
		return notOpened()
	}
	return db.Set([]byte(key), value, pebble.Sync)
}

func del(key string) error {
	if db == nil {
		return notOpened()
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// scan iterates all values under prefix in key order, invoking fn with a
// copy of each key and value. fn returning false stops the scan.
func scan(prefix string, fn func(key string, value []byte) bool) error {
	if db == nil {
		return notOpened()
	}
	pfx := []byte(prefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		k := string(append([]byte(nil), iter.Key()...))
		v := append([]byte(nil), iter.Value()...)
		if !fn(k, v) {
			break
		}
	}
	return iter.Error()
}

// pairKey builds a direction-independent index key for a user pair.
func pairKey(ns, a, b string) string {
	if b < a {
		a, b = b, a
	}
	return ns + ":" + a + ":" + b
}
