package capture

import (
	"sync"
	"time"
)

// PendingRequest is a request body seen before its headers.
type PendingRequest struct {
	URL       string
	FormToken string
	Timestamp time.Time
}

// PendingTable holds request bodies waiting for their headers, keyed by
// request id.
type PendingTable interface {
	Put(requestID string, p PendingRequest)
	// Take removes and returns the entry for requestID.
	Take(requestID string) (PendingRequest, bool)
	// Sweep drops entries stamped before cutoff and returns how many.
	Sweep(cutoff time.Time) int
	Len() int
}

type memPending struct {
	mu      sync.Mutex
	entries map[string]PendingRequest
}

// NewPendingTable returns an in-process table. Entries only live for
// seconds, so losing them with the process is acceptable.
func NewPendingTable() PendingTable {
	return &memPending{entries: make(map[string]PendingRequest)}
}

func (t *memPending) Put(requestID string, p PendingRequest) {
	t.mu.Lock()
	t.entries[requestID] = p
	t.mu.Unlock()
}

func (t *memPending) Take(requestID string) (PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.entries[requestID]
	delete(t.entries, requestID)
	return p, ok
}

func (t *memPending) Sweep(cutoff time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, p := range t.entries {
		if p.Timestamp.Before(cutoff) {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

func (t *memPending) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
