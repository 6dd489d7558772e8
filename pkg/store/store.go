// Package store defines the transactional keyspace contract the auction
// engine requires from a partition's storage, plus a pebble-backed
// implementation. The engine depends only on the interfaces here so any
// transactional key-value backend can be substituted.
package store

import (
	"context"
	"errors"
)

// ErrKeyExists is returned by Txn.Add when the key is already present.
var ErrKeyExists = errors.New("key already exists")

// Txn is one atomic commit scope. Writes become visible to other
// transactions only when the enclosing Update commits; reads within the
// scope observe the scope's own writes.
type Txn interface {
	// TryGet returns the value for key and whether it exists.
	TryGet(key []byte) ([]byte, bool, error)
	// Add stores the value, failing with ErrKeyExists if key is present.
	Add(key, value []byte) error
	// Set unconditionally stores the value.
	Set(key, value []byte) error
	// Delete removes the key if present.
	Delete(key []byte) error
	// Scan enumerates keys with the given prefix in order, invoking fn
	// for each pair until exhaustion or a non-nil error.
	Scan(prefix []byte, fn func(key, value []byte) error) error
}

// Keyspace is a partition's transactional store.
type Keyspace interface {
	// Update runs fn inside one commit scope; fn returning nil commits,
	// any error discards the scope and propagates.
	Update(ctx context.Context, fn func(Txn) error) error
	// View runs fn against a read-only scope.
	View(ctx context.Context, fn func(Txn) error) error
	Close() error
}
