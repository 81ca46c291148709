// Package lock serializes mutations that touch the same resources across goroutines or processes.
package lock

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Release frees every key taken by one Acquire call.
type Release func(ctx context.Context) error

type Locker interface {
	// Acquire blocks until every key is held or ctx is done. Keys are taken in sorted order,
	// so two callers with overlapping key sets cannot deadlock.
	Acquire(ctx context.Context, keys []string) (Release, error)
}

// ResourceKeys maps resource ids to lock keys of the form "resource:<id>", sorted and deduplicated.
func ResourceKeys(ids []int) []string {
	seen := make(map[int]bool, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		keys = append(keys, "resource:"+strconv.Itoa(id))
	}
	sort.Strings(keys)
	return keys
}

func normalize(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Local is an in-process Locker with one semaphore per key. A key's slot lives only while
// some caller holds or waits for it.
type Local struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal() *Local {
	return &Local{slots: make(map[string]*slot)}
}

func (l *Local) ref(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *Local) unref(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// Keys returns how many keys are currently held or waited on.
func (l *Local) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

func (l *Local) Acquire(ctx context.Context, keys []string) (Release, error) {
	keys = normalize(keys)
	held := make([]string, 0, len(keys))
	slots := make([]*slot, 0, len(keys))

	unlock := func(context.Context) error {
		for i := len(held) - 1; i >= 0; i-- {
			<-slots[i].ch
			l.unref(held[i], slots[i])
		}
		held, slots = nil, nil
		return nil
	}

	for _, key := range keys {
		s := l.ref(key)
		select {
		case s.ch <- struct{}{}:
			held = append(held, key)
			slots = append(slots, s)
		case <-ctx.Done():
			l.unref(key, s)
			unlock(ctx)
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		}
	}

	return unlock, nil
}

// Noop never blocks. Used when locking is disabled.
type Noop struct{}

func (Noop) Acquire(context.Context, []string) (Release, error) {
	return func(context.Context) error { return nil }, nil
}
