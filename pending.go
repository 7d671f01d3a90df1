package billingsync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingPurchase records a purchase or restore whose backend confirmation
// timed out. The payment most likely went through; the webhook just hasn't
// landed. Entries are drained once a later sync confirms the entitlement.
type PendingPurchase struct {
	ID            string
	UserID        string
	ProductID     string
	TransactionID string
	Operation     string
	PollCount     int
	Elapsed       time.Duration
	Timestamp     time.Time
}

// PendingQueue retains timed-out confirmations for later reconciliation and
// for debug surfaces.
type PendingQueue interface {
	// Add records a timed-out confirmation. The entry's ID is assigned here.
	Add(ctx context.Context, entry *PendingPurchase) error
	// List retrieves up to limit entries for inspection.
	List(ctx context.Context, limit int) ([]*PendingPurchase, error)
	// Remove removes a single entry.
	Remove(ctx context.Context, id string) error
	// RemoveForUser removes every entry belonging to a user.
	RemoveForUser(ctx context.Context, userID string) error
}

// InMemoryPendingQueue is a simple in-memory implementation.
type InMemoryPendingQueue struct {
	entries map[string]*PendingPurchase
	mu      sync.RWMutex
}

func NewInMemoryPendingQueue() *InMemoryPendingQueue {
	return &InMemoryPendingQueue{entries: make(map[string]*PendingPurchase)}
}

func (q *InMemoryPendingQueue) Add(ctx context.Context, entry *PendingPurchase) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry.ID = uuid.NewString()
	q.entries[entry.ID] = entry
	return nil
}

func (q *InMemoryPendingQueue) List(ctx context.Context, limit int) ([]*PendingPurchase, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var pending []*PendingPurchase
	count := 0
	for _, entry := range q.entries {
		if count >= limit {
			break
		}
		pending = append(pending, entry)
		count++
	}
	return pending, nil
}

func (q *InMemoryPendingQueue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.entries, id)
	return nil
}

func (q *InMemoryPendingQueue) RemoveForUser(ctx context.Context, userID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for id, entry := range q.entries {
		if entry.UserID == userID {
			delete(q.entries, id)
		}
	}
	return nil
}

func (q *InMemoryPendingQueue) depth() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.entries)
}
