// Package dedupe tracks claimed keys to keep side effects at most once.
package dedupe

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/okian/runclub/internal/domain/model"
)

const defaultMaxSize = 10_000

// Ledger records claims on keys so that a side effect guarded by a key
// runs at most once per process.
type Ledger interface {
	// Claim atomically records key. It returns true if the caller now owns
	// the key and false if it had already been claimed.
	Claim(ctx context.Context, key string) bool

	// Release drops a claim so the key can be claimed again.
	Release(ctx context.Context, key string)

	// Size returns the number of live claims.
	Size() int
}

// ReminderKey is the claim key for the reminder of event at lead.
func ReminderKey(event model.EventID, lead model.LeadTime) string {
	return fmt.Sprintf("reminder:%s:%d", lead, event)
}

// memoryLedger keeps claims in a map plus an insertion-ordered list used
// for eviction in bounded mode.
type memoryLedger struct {
	mu      sync.Mutex
	claims  map[string]*list.Element
	order   *list.List // front = oldest
	maxSize int
}

// NewMemoryLedger creates an in-memory ledger.
func NewMemoryLedger(opts ...Option) Ledger {
	l := &memoryLedger{
		maxSize: defaultMaxSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.claims = make(map[string]*list.Element)
	l.order = list.New()
	return l
}

func (l *memoryLedger) Claim(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, taken := l.claims[key]; taken {
		return false
	}
	if l.maxSize > 0 && len(l.claims) >= l.maxSize {
		l.evictOldest()
	}
	l.claims[key] = l.order.PushBack(key)
	return true
}

func (l *memoryLedger) Release(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if el, ok := l.claims[key]; ok {
		l.order.Remove(el)
		delete(l.claims, key)
	}
}

// evictOldest must be called with l.mu held.
func (l *memoryLedger) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}
	l.order.Remove(front)
	delete(l.claims, front.Value.(string))
}

func (l *memoryLedger) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.claims)
}
