package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/lnaie/sfAuction/pkg/logger"
)

// PebbleStore implements Keyspace over a pebble database. An indexed
// batch gives read-your-writes inside one scope; pebble batches carry
// no inter-batch conflict detection, so commit scopes are serialized by
// the store's own mutex. One scope's read-check-write sequence can
// therefore never interleave with another's.
type PebbleStore struct {
	mu sync.Mutex
	db *pebble.DB
}

// Open opens (or creates) the pebble database at path.
func Open(path string) (*PebbleStore, error) {
	logger.Info("opening_store", "path", path)
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("store_open_failed", "path", path, "error", err)
		return nil, fmt.Errorf("open pebble at %s: %w", path, err)
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Close() error { return s.db.Close() }

// Ready reports whether the store is open, for readiness probes.
func (s *PebbleStore) Ready() bool { return s != nil && s.db != nil }

func (s *PebbleStore) Update(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.db.NewIndexedBatch()
	defer b.Close()
	if err := fn(&pebbleTxn{b: b}); err != nil {
		return err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		commitFailures.Inc()
		return fmt.Errorf("commit: %w", err)
	}
	commits.Inc()
	return nil
}

func (s *PebbleStore) View(ctx context.Context, fn func(Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := s.db.NewSnapshot()
	defer snap.Close()
	return fn(&pebbleSnapshotTxn{snap: snap})
}

type pebbleTxn struct {
	b *pebble.Batch
}

func (t *pebbleTxn) TryGet(key []byte) ([]byte, bool, error) {
	v, closer, err := t.b.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true, nil
}

func (t *pebbleTxn) Add(key, value []byte) error {
	_, exists, err := t.TryGet(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrKeyExists, key)
	}
	return t.b.Set(key, value, nil)
}

func (t *pebbleTxn) Set(key, value []byte) error {
	return t.b.Set(key, value, nil)
}

func (t *pebbleTxn) Delete(key []byte) error {
	return t.b.Delete(key, nil)
}

func (t *pebbleTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := t.b.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()
	scans.Inc()
	return iterate(iter, fn)
}

type pebbleSnapshotTxn struct {
	snap *pebble.Snapshot
}

func (t *pebbleSnapshotTxn) TryGet(key []byte) ([]byte, bool, error) {
	v, closer, err := t.snap.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := append([]byte(nil), v...)
	_ = closer.Close()
	return out, true, nil
}

func (t *pebbleSnapshotTxn) Add(key, value []byte) error { return errReadOnly }
func (t *pebbleSnapshotTxn) Set(key, value []byte) error { return errReadOnly }
func (t *pebbleSnapshotTxn) Delete(key []byte) error     { return errReadOnly }

func (t *pebbleSnapshotTxn) Scan(prefix []byte, fn func(key, value []byte) error) error {
	iter, err := t.snap.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	defer iter.Close()
	scans.Inc()
	return iterate(iter, fn)
}

var errReadOnly = errors.New("write inside read-only scope")

func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	if len(prefix) == 0 {
		return &pebble.IterOptions{}
	}
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			upper = upper[:i+1]
			return &pebble.IterOptions{LowerBound: prefix, UpperBound: upper}
		}
	}
	return &pebble.IterOptions{LowerBound: prefix}
}

func iterate(iter *pebble.Iterator, fn func(key, value []byte) error) error {
	for iter.First(); iter.Valid(); iter.Next() {
		k := append([]byte(nil), iter.Key()...)
		v := append([]byte(nil), iter.Value()...)
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return iter.Error()
}
