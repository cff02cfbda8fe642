// Package kv wraps go.etcd.io/bbolt as the ordered byte-keyed key-value
// substrate described by the design (C1): named ordered trees with point
// get/insert/remove, range scan, atomic single-key read-modify-write, and a
// durable flush. bbolt's buckets map directly onto "trees", and its
// single-writer B+tree transactions give point operations the exact
// no-intermediate-state guarantee the atomic RMW contract requires.
//
// Grounded on other_examples/manifests/cuemby-warren's BoltDB-backed storage
// layer (pkg/storage doc.go): db.View()/db.Update() transactions, bucket
// structure, and explicit fsync-backed commits are the same shape used here.
package kv

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/pszemraj/localpaste/internal/model"
)

// DB is the opened key-value substrate: a single bbolt file containing the
// named trees this service uses.
type DB struct {
	bolt *bbolt.DB
	path string
}

// Open opens (creating if absent) the bbolt file at path and ensures every
// tree named in trees exists.
func Open(path string, trees ...string) (*DB, error) {
	bdb, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, model.NewStorage(fmt.Sprintf("open %s", path), err)
	}
	err = bdb.Update(func(tx *bbolt.Tx) error {
		for _, name := range trees {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return nil, model.NewStorage("create trees", err)
	}
	return &DB{bolt: bdb, path: path}, nil
}

// Path returns the filesystem path the database was opened from.
func (db *DB) Path() string { return db.path }

// Close flushes and closes the underlying file.
func (db *DB) Close() error {
	if err := db.bolt.Close(); err != nil {
		return model.NewStorage("close", err)
	}
	return nil
}

// Flush durably persists all accepted writes. bbolt fsyncs on every
// successful Update transaction commit, so a no-op read-write transaction is
// sufficient to guarantee prior writes are on disk before returning.
func (db *DB) Flush() error {
	err := db.bolt.Update(func(tx *bbolt.Tx) error { return nil })
	if err != nil {
		return model.NewStorage("flush", err)
	}
	return nil
}

// Get returns the value stored under key in tree, or nil if absent.
func (db *DB) Get(tree, key string) ([]byte, error) {
	var value []byte
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("tree %q does not exist", tree)
		}
		if v := b.Get([]byte(key)); v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, model.NewStorage(fmt.Sprintf("get %s/%s", tree, key), err)
	}
	return value, nil
}

// Put writes value under key in tree.
func (db *DB) Put(tree, key string, value []byte) error {
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("tree %q does not exist", tree)
		}
		return b.Put([]byte(key), value)
	})
	if err != nil {
		return model.NewStorage(fmt.Sprintf("put %s/%s", tree, key), err)
	}
	return nil
}

// Delete removes key from tree. Deleting an absent key is not an error.
func (db *DB) Delete(tree, key string) error {
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("tree %q does not exist", tree)
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		return model.NewStorage(fmt.Sprintf("delete %s/%s", tree, key), err)
	}
	return nil
}

// Clear removes every key from tree, leaving the (empty) bucket in place.
// Used by the startup reconciler to rebuild derived trees from scratch.
func (db *DB) Clear(tree string) error {
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(tree)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(tree))
		return err
	})
	if err != nil {
		return model.NewStorage(fmt.Sprintf("clear %s", tree), err)
	}
	return nil
}

// RMW performs an atomic read-modify-write of a single key: fn sees the
// prior value (nil if absent) and returns the new value to store. Returning
// (nil, false, nil) deletes the key instead of writing. No other writer can
// observe an intermediate state for this key, because the whole
// read-and-write happens inside one bbolt write transaction.
func (db *DB) RMW(tree, key string, fn func(prior []byte) (next []byte, ok bool, err error)) error {
	err := db.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("tree %q does not exist", tree)
		}
		prior := b.Get([]byte(key))
		var priorCopy []byte
		if prior != nil {
			priorCopy = append([]byte(nil), prior...)
		}
		next, ok, err := fn(priorCopy)
		if err != nil {
			return err
		}
		if !ok {
			return b.Delete([]byte(key))
		}
		return b.Put([]byte(key), next)
	})
	if err != nil {
		return model.NewStorage(fmt.Sprintf("rmw %s/%s", tree, key), err)
	}
	return nil
}

// Item is a single key/value pair.
type Item struct {
	Key   []byte
	Value []byte
}

// ForEach iterates every key/value pair in tree in ascending byte-lexical
// key order, stopping early if fn returns false.
func (db *DB) ForEach(tree string, fn func(key, value []byte) (cont bool, err error)) error {
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(tree))
		if b == nil {
			return fmt.Errorf("tree %q does not exist", tree)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			cont, err := fn(k, v)
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
	if err != nil {
		return model.NewStorage(fmt.Sprintf("foreach %s", tree), err)
	}
	return nil
}

// Count returns the number of keys in tree.
func (db *DB) Count(tree string) (int, error) {
	n := 0
	err := db.ForEach(tree, func(_, _ []byte) (bool, error) {
		n++
		return true, nil
	})
	return n, err
}
