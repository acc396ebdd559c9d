// Package memory implements the in-process fallback tier: a bounded,
// TTL-aware LRU byte store. It is always available and never fails, which is
// what makes it a usable floor when the remote tier is down.
package memory

import (
	"context"
	"sync"
	"time"

	pr "github.com/chartpulse/backend/cache/provider"
)

const DefaultCapacity = 1000

// entry is one key inside the store. Recency is tracked with an intrusive
// doubly-linked list: head is most recently used, tail least.
type entry struct {
	key       string
	value     []byte
	expiresAt time.Time
	prev      *entry
	next      *entry
}

// Store holds at most capacity entries. A single mutex serializes every
// access, so readers never observe a torn map/list state.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	head     *entry
	tail     *entry
	capacity int

	now func() time.Time
}

var _ pr.Provider = (*Store)(nil)

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		entries:  make(map[string]*entry, capacity),
		capacity: capacity,
		now:      time.Now,
	}
}

// Set sweeps expired entries, evicts the least-recently-used entry if the
// insert would exceed capacity, then stores the value as most recently used.
// Capacity pressure is resolved by eviction, never by rejecting the write.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeExpired(now)

	if e, ok := s.entries[key]; ok {
		e.value = value
		e.expiresAt = now.Add(ttl)
		s.moveToFront(e)
		return nil
	}

	if len(s.entries) >= s.capacity {
		s.removeEntry(s.tail)
	}

	e := &entry{key: key, value: value, expiresAt: now.Add(ttl)}
	s.entries[key] = e
	s.pushFront(e)
	return nil
}

// Get returns the value and promotes the entry to most recently used.
// Expired entries are removed lazily here.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.After(s.now()) {
		s.removeEntry(e)
		return nil, false, nil
	}
	s.moveToFront(e)
	return e.value, true, nil
}

// Del removes the key if present. Idempotent.
func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok {
		s.removeEntry(e)
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }

// Len reports the current number of entries, expired ones included until the
// next sweep.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// purgeExpired removes every entry whose TTL has elapsed. Linear in the store
// size, which is fine for the bounded capacities this tier runs with.
func (s *Store) purgeExpired(now time.Time) {
	for e := s.tail; e != nil; {
		prev := e.prev
		if !e.expiresAt.After(now) {
			s.removeEntry(e)
		}
		e = prev
	}
}

func (s *Store) removeEntry(e *entry) {
	if e == nil {
		return
	}
	s.unlink(e)
	delete(s.entries, e.key)
}

func (s *Store) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		s.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		s.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (s *Store) pushFront(e *entry) {
	e.next = s.head
	if s.head != nil {
		s.head.prev = e
	}
	s.head = e
	if s.tail == nil {
		s.tail = e
	}
}

func (s *Store) moveToFront(e *entry) {
	if s.head == e {
		return
	}
	s.unlink(e)
	s.pushFront(e)
}
