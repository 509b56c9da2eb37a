package secretstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Batcher is implemented by stores that can write several keys atomically.
type Batcher interface {
	PutBatch(ctx context.Context, items map[string][]byte) error
}

// PutAll writes every item. Stores implementing Batcher write them in one
// transaction.
//
// Other stores receive sequential Puts. KeyMasterKeyRecord goes last because
// its presence is what marks a vault as existing. When a Put fails, the keys
// already written are put back to their previous value, or deleted if they
// had none.
func PutAll(ctx context.Context, s Store, items map[string][]byte) error {
	if b, ok := s.(Batcher); ok {
		return b.PutBatch(ctx, items)
	}

	var written []priorValue
	for _, k := range writeOrder(items) {
		old, err := s.Get(ctx, k)
		found := err == nil
		if err != nil && !errors.Is(err, ErrNotFound) {
			return errors.Join(err, rollback(s, written))
		}
		if err := s.Put(ctx, k, items[k]); err != nil {
			return errors.Join(err, rollback(s, written))
		}
		written = append(written, priorValue{key: k, value: old, found: found})
	}
	return nil
}

// priorValue is what a key held before PutAll overwrote it.
type priorValue struct {
	key   string
	value []byte
	found bool
}

// rollback undoes writes newest first. It runs on a fresh context so a
// cancelled caller still gets its partial writes reverted.
func rollback(s Store, written []priorValue) error {
	ctx := context.Background()
	var errs []error
	for i := len(written) - 1; i >= 0; i-- {
		w := written[i]
		var err error
		if w.found {
			err = s.Put(ctx, w.key, w.value)
		} else {
			err = s.Delete(ctx, w.key)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to roll back %s: %w", w.key, err))
		}
	}
	return errors.Join(errs...)
}

// writeOrder sorts keys, moving KeyMasterKeyRecord to the end.
func writeOrder(items map[string][]byte) []string {
	keys := sortedKeys(items)
	for i, k := range keys {
		if k == KeyMasterKeyRecord {
			keys = append(append(keys[:i:i], keys[i+1:]...), k)
			break
		}
	}
	return keys
}

// PutBatch stores all items under a single lock.
func (m *Memory) PutBatch(ctx context.Context, items map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range items {
		m.data[k] = append([]byte{}, v...)
	}
	return nil
}

func sortedKeys(items map[string][]byte) []string {
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
