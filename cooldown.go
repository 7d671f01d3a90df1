package billingsync

import (
	"sync"
	"time"
)

// DefaultCooldownWindow is the minimum interval between backend refresh
// triggers for the same user. Login and session-restore events happen far
// more often than entitlements actually change; refreshing on every one of
// them would cause redundant load and duplicate webhook-triggered writes.
const DefaultCooldownWindow = 10 * time.Minute

// CooldownStore persists last-refresh timestamps per user. The library ships
// an in-memory implementation; callers may provide their own.
type CooldownStore interface {
	// Get returns the last recorded refresh time for a user.
	Get(userID string) (time.Time, bool)
	// Set overwrites the last refresh time for a user.
	Set(userID string, t time.Time)
	// Clear removes one user's record.
	Clear(userID string)
	// ClearAll removes every record.
	ClearAll()
}

// InMemoryCooldownStore is an in-memory implementation of CooldownStore.
// A fresh store answers "allow" for every user.
type InMemoryCooldownStore struct {
	mu   sync.RWMutex
	last map[string]time.Time
}

// NewInMemoryCooldownStore creates a new InMemoryCooldownStore.
func NewInMemoryCooldownStore() *InMemoryCooldownStore {
	return &InMemoryCooldownStore{last: make(map[string]time.Time)}
}

func (s *InMemoryCooldownStore) Get(userID string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[userID]
	return t, ok
}

func (s *InMemoryCooldownStore) Set(userID string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[userID] = t
}

func (s *InMemoryCooldownStore) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.last, userID)
}

func (s *InMemoryCooldownStore) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = make(map[string]time.Time)
}

// CooldownTracker gates backend refresh calls per user. Concurrent recordings
// for the same user are last-writer-wins, which is acceptable because the
// tracker only gates frequency of refreshes, not correctness.
type CooldownTracker struct {
	store  CooldownStore
	window time.Duration
	now    func() time.Time
}

// CooldownOption configures a CooldownTracker.
type CooldownOption func(*CooldownTracker)

// WithCooldownStore sets the backing store. Defaults to a fresh in-memory store.
func WithCooldownStore(store CooldownStore) CooldownOption {
	return func(t *CooldownTracker) {
		if store != nil {
			t.store = store
		}
	}
}

// WithCooldownWindow sets the minimum interval between refreshes.
func WithCooldownWindow(window time.Duration) CooldownOption {
	return func(t *CooldownTracker) {
		if window > 0 {
			t.window = window
		}
	}
}

// WithCooldownClock sets the time source (primarily for testing).
func WithCooldownClock(now func() time.Time) CooldownOption {
	return func(t *CooldownTracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewCooldownTracker creates a tracker with its own in-memory store and the
// default ten minute window.
func NewCooldownTracker(opts ...CooldownOption) *CooldownTracker {
	t := &CooldownTracker{
		store:  NewInMemoryCooldownStore(),
		window: DefaultCooldownWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ShouldRefresh reports whether a refresh is allowed for the user: true when
// no refresh was ever recorded, or the window has fully elapsed since the
// last one.
func (t *CooldownTracker) ShouldRefresh(userID string) bool {
	last, ok := t.store.Get(userID)
	if !ok {
		return true
	}
	return t.now().Sub(last) >= t.window
}

// RecordRefresh overwrites the last-refresh timestamp for the user.
func (t *CooldownTracker) RecordRefresh(userID string) {
	t.store.Set(userID, t.now())
}

// Clear removes one user's record so the next ShouldRefresh answers true.
// Manual "retry" actions bypass the cooldown this way.
func (t *CooldownTracker) Clear(userID string) {
	t.store.Clear(userID)
}

// ClearAll removes every record.
func (t *CooldownTracker) ClearAll() {
	t.store.ClearAll()
}
