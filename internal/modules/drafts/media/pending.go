package media

import (
	"sync"

	"github.com/google/uuid"
)

// Pending is an image node waiting on ingestion.
type Pending struct {
	ArticleID     uuid.UUID
	CorrelationID string
	NodeID        string
	Ref           string
	ActingUser    uuid.UUID
}

// PendingTable maps correlation ids to in-flight ingestions. Each entry
// resolves at most once.
type PendingTable struct {
	mu    sync.Mutex
	items map[string]Pending
}

func NewPendingTable() *PendingTable {
	return &PendingTable{items: map[string]Pending{}}
}

// Register records p under correlationID. It reports false when the id is
// already in flight.
func (t *PendingTable) Register(correlationID string, p Pending) bool {
	if correlationID == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.items[correlationID]; ok {
		return false
	}
	t.items[correlationID] = p
	return true
}

func (t *PendingTable) Resolve(correlationID string) (Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.items[correlationID]
	if ok {
		delete(t.items, correlationID)
	}
	return p, ok
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}
