package billingsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownUnseenUserAllowed(t *testing.T) {
	tracker := NewCooldownTracker()
	assert.True(t, tracker.ShouldRefresh("fresh-user"))
}

func TestCooldownWindow(t *testing.T) {
	clock := newFakeClock()
	tracker := NewCooldownTracker(
		WithCooldownWindow(10*time.Minute),
		WithCooldownClock(clock.now),
	)

	tracker.RecordRefresh("user-1")
	assert.False(t, tracker.ShouldRefresh("user-1"))

	// Just inside the window.
	clock.t = clock.t.Add(10*time.Minute - time.Second)
	assert.False(t, tracker.ShouldRefresh("user-1"))

	// Exactly at the boundary the window has elapsed.
	clock.t = clock.t.Add(time.Second)
	assert.True(t, tracker.ShouldRefresh("user-1"))
}

func TestCooldownUsersAreIsolated(t *testing.T) {
	clock := newFakeClock()
	tracker := NewCooldownTracker(WithCooldownClock(clock.now))

	tracker.RecordRefresh("user-1")
	assert.False(t, tracker.ShouldRefresh("user-1"))
	assert.True(t, tracker.ShouldRefresh("user-2"))
}

func TestCooldownClear(t *testing.T) {
	clock := newFakeClock()
	tracker := NewCooldownTracker(WithCooldownClock(clock.now))

	tracker.RecordRefresh("user-1")
	tracker.RecordRefresh("user-2")

	tracker.Clear("user-1")
	assert.True(t, tracker.ShouldRefresh("user-1"))
	assert.False(t, tracker.ShouldRefresh("user-2"))

	tracker.ClearAll()
	assert.True(t, tracker.ShouldRefresh("user-2"))
}

func TestCooldownRecordOverwrites(t *testing.T) {
	clock := newFakeClock()
	tracker := NewCooldownTracker(
		WithCooldownWindow(10*time.Minute),
		WithCooldownClock(clock.now),
	)

	tracker.RecordRefresh("user-1")
	clock.t = clock.t.Add(9 * time.Minute)
	tracker.RecordRefresh("user-1")

	// The second recording restarted the window.
	clock.t = clock.t.Add(9 * time.Minute)
	assert.False(t, tracker.ShouldRefresh("user-1"))
	clock.t = clock.t.Add(time.Minute)
	assert.True(t, tracker.ShouldRefresh("user-1"))
}

func TestInMemoryCooldownStore(t *testing.T) {
	store := NewInMemoryCooldownStore()

	_, ok := store.Get("user-1")
	assert.False(t, ok)

	now := time.Now()
	store.Set("user-1", now)
	got, ok := store.Get("user-1")
	assert.True(t, ok)
	assert.Equal(t, now, got)

	store.Clear("user-1")
	_, ok = store.Get("user-1")
	assert.False(t, ok)
}
