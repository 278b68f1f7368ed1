package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// KeyedMutex is an in-process Locker with one mutex per account id. Slots
// are created on demand and dropped once nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{} // one token; holding it means owning the id
	refs int           // holders plus waiters
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{slots: make(map[string]*slot)}
}

// Lock acquires ids in lexicographic order, skipping duplicates, so two
// callers locking the same pair in opposite order cannot deadlock.
func (k *KeyedMutex) Lock(ctx context.Context, ids ...string) (func(), error) {
	keys := lockOrder(ids)
	held := make([]string, 0, len(keys))
	for _, id := range keys {
		if err := k.acquire(ctx, id); err != nil {
			k.release(held)
			return nil, fmt.Errorf("lock account %s: %w", id, err)
		}
		held = append(held, id)
	}
	var once sync.Once
	return func() { once.Do(func() { k.release(held) }) }, nil
}

func (k *KeyedMutex) acquire(ctx context.Context, id string) error {
	k.mu.Lock()
	s, ok := k.slots[id]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[id] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		k.mu.Lock()
		k.drop(id, s)
		k.mu.Unlock()
		return ctx.Err()
	}
}

func (k *KeyedMutex) release(ids []string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for i := len(ids) - 1; i >= 0; i-- {
		s := k.slots[ids[i]]
		<-s.ch
		k.drop(ids[i], s)
	}
}

// drop must be called with k.mu held.
func (k *KeyedMutex) drop(id string, s *slot) {
	s.refs--
	if s.refs == 0 {
		delete(k.slots, id)
	}
}

// size reports how many ids currently have a slot.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}

func lockOrder(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
