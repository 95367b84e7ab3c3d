// Package querycache is an in-process cache of query results addressed by
// hierarchical keys, with helpers for paginated (infinite) entries and
// optimistic updates.
package querycache

import (
	"strings"
	"sync"
	"time"
)

// Key addresses a cache entry. A key is a prefix of another when all of its
// parts match the leading parts of the other.
type Key []string

// HasPrefix reports whether prefix addresses k.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) hash() string {
	return strings.Join(k, "\x00")
}

// EventType describes a change to the store.
type EventType int

const (
	EventUpdated EventType = iota
	EventInvalidated
	EventRemoved
)

// Event is delivered to subscribers after a change is committed.
type Event struct {
	Type EventType
	Key  Key
}

// entry.fetchedAt is when the data last came from the source. Optimistic
// updates through Update leave it alone, so they never extend freshness.
type entry struct {
	key         Key
	data        any
	fetchedAt   time.Time
	invalidated bool
}

// Store holds query results. All methods are safe for concurrent use; each
// call commits atomically with respect to readers.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry

	subMu  sync.Mutex
	subs   map[int]func(Event)
	nextID int

	staleTime  time.Duration
	maxEntries int
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithStaleTime reports entries older than d as stale. Zero keeps entries
// fresh until invalidated.
func WithStaleTime(d time.Duration) Option {
	return func(s *Store) { s.staleTime = d }
}

// WithMaxEntries caps the number of entries. When a write goes over the cap,
// expired entries are dropped first, then the least recently fetched.
func WithMaxEntries(n int) Option {
	return func(s *Store) { s.maxEntries = n }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		subs:    make(map[int]func(Event)),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) isStale(e *entry) bool {
	return e.invalidated || (s.staleTime > 0 && s.now().Sub(e.fetchedAt) > s.staleTime)
}

// Get returns the data stored under the exact key. Invalidated and expired
// entries are reported as stale.
func (s *Store) Get(key Key) (data any, stale bool, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key.hash()]
	if !ok {
		return nil, false, false
	}
	return e.data, s.isStale(e), true
}

// Set stores freshly fetched data under the exact key.
func (s *Store) Set(key Key, data any) {
	k := append(Key(nil), key...)

	s.mu.Lock()
	s.entries[k.hash()] = &entry{key: k, data: data, fetchedAt: s.now()}
	evicted := s.evictLocked(k.hash())
	s.mu.Unlock()

	s.notify(append([]Event{{Type: EventUpdated, Key: k}}, evicted...))
}

// evictLocked enforces maxEntries, never dropping the entry under keep.
func (s *Store) evictLocked(keep string) []Event {
	if s.maxEntries <= 0 || len(s.entries) <= s.maxEntries {
		return nil
	}
	var events []Event
	for h, e := range s.entries {
		if h != keep && s.isStale(e) {
			delete(s.entries, h)
			events = append(events, Event{Type: EventRemoved, Key: e.key})
		}
	}
	for len(s.entries) > s.maxEntries {
		oldest := ""
		for h, e := range s.entries {
			if h == keep {
				continue
			}
			if oldest == "" || e.fetchedAt.Before(s.entries[oldest].fetchedAt) {
				oldest = h
			}
		}
		if oldest == "" {
			break
		}
		events = append(events, Event{Type: EventRemoved, Key: s.entries[oldest].key})
		delete(s.entries, oldest)
	}
	return events
}

// Update applies fn to every entry addressed by prefix while holding the
// write lock, so readers observe either none or all of the changes. fn
// returns ok=false to leave an entry untouched. Update returns the number of
// entries that changed.
func (s *Store) Update(prefix Key, fn func(key Key, old any) (next any, ok bool)) int {
	var events []Event

	s.mu.Lock()
	for _, e := range s.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		next, ok := fn(e.key, e.data)
		if !ok {
			continue
		}
		e.data = next
		events = append(events, Event{Type: EventUpdated, Key: e.key})
	}
	s.mu.Unlock()

	s.notify(events)
	return len(events)
}

// Invalidate marks entries addressed by prefix as stale. Their data stays
// readable until refetched.
func (s *Store) Invalidate(prefix Key) int {
	var events []Event

	s.mu.Lock()
	for _, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			e.invalidated = true
			events = append(events, Event{Type: EventInvalidated, Key: e.key})
		}
	}
	s.mu.Unlock()

	s.notify(events)
	return len(events)
}

// Remove drops entries addressed by prefix.
func (s *Store) Remove(prefix Key) int {
	var events []Event

	s.mu.Lock()
	for h, e := range s.entries {
		if e.key.HasPrefix(prefix) {
			delete(s.entries, h)
			events = append(events, Event{Type: EventRemoved, Key: e.key})
		}
	}
	s.mu.Unlock()

	s.notify(events)
	return len(events)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe registers fn for change events. Events are delivered
// synchronously after the change is committed, outside the store lock.
func (s *Store) Subscribe(fn func(Event)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(events []Event) {
	if len(events) == 0 {
		return
	}

	s.subMu.Lock()
	subs := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()

	for _, ev := range events {
		for _, fn := range subs {
			fn(ev)
		}
	}
}
