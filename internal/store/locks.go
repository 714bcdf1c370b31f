package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/punchamoorthee/rentalops/internal/service"
)

// keyedMutex hands out one exclusive lock per key. Entries are reference
// counted and dropped once nobody holds or waits for them.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyLock)}
}

func (k *keyedMutex) lock(ctx context.Context, key string) error {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.release(key, l)
		return ctx.Err()
	}
}

func (k *keyedMutex) unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	k.mu.Unlock()
	<-l.ch
	k.release(key, l)
}

func (k *keyedMutex) release(key string, l *keyLock) {
	k.mu.Lock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// lockAll acquires every key in order and returns a func releasing them.
// On failure nothing stays held.
func (k *keyedMutex) lockAll(ctx context.Context, keys []string) (func(), error) {
	held := make([]string, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			k.unlock(held[i])
		}
	}
	for _, key := range keys {
		if err := k.lock(ctx, key); err != nil {
			releaseAll()
			return nil, err
		}
		held = append(held, key)
	}
	return releaseAll, nil
}

// lockKeys flattens a LockSet into a deterministic acquisition order:
// assets, then users, then rentals, each sorted and de-duplicated.
// Every caller acquiring in the same order rules out lock-order deadlocks.
func lockKeys(ls service.LockSet) []string {
	keys := make([]string, 0, len(ls.Assets)+len(ls.Users)+len(ls.Rentals))
	keys = append(keys, prefixed("asset:", ls.Assets)...)
	keys = append(keys, prefixed("user:", ls.Users)...)
	keys = append(keys, prefixed("rental:", ls.Rentals)...)
	return keys
}

func prefixed(prefix string, ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range sortedIDs(ids) {
		out = append(out, prefix+id.String())
	}
	return out
}

func sortedIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
