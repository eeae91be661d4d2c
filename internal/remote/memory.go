package remote

import (
	"context"
	"fmt"
	"sync"

	"github.com/suinrdeveloper-dev/vault"
)

// MemoryQueue is an in-process vault.RemoteQueue. It backs local
// experiments and tests that need a queue without a network.
type MemoryQueue struct {
	mu       sync.Mutex
	records  []vault.RemoteRecord
	deletes  []string
	fetches  int
	fetchErr error
	onFetch  func()
	onDelete func(id string) error
}

// NewMemoryQueue returns a queue holding records in order.
func NewMemoryQueue(records ...vault.RemoteRecord) *MemoryQueue {
	return &MemoryQueue{records: append([]vault.RemoteRecord(nil), records...)}
}

// Push appends r, filling an empty ID and CreatedAt like HTTPClient.Push.
func (q *MemoryQueue) Push(_ context.Context, r vault.RemoteRecord) (vault.RemoteRecord, error) {
	r = fillEvent(r)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, r)
	return r, nil
}

// Add appends records as given, without filling any field.
func (q *MemoryQueue) Add(records ...vault.RemoteRecord) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.records = append(q.records, records...)
}

// FetchPending returns a copy of the queued records.
func (q *MemoryQueue) FetchPending(ctx context.Context) ([]vault.RemoteRecord, error) {
	q.mu.Lock()
	q.fetches++
	hook := q.onFetch
	err := q.fetchErr
	q.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, vault.NewConnectionError("fetch_pending", 0, err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]vault.RemoteRecord(nil), q.records...), nil
}

// DeleteByID removes the first record with the given id.
func (q *MemoryQueue) DeleteByID(_ context.Context, id string) error {
	q.mu.Lock()
	hook := q.onDelete
	q.deletes = append(q.deletes, id)
	q.mu.Unlock()

	if hook != nil {
		if err := hook(id); err != nil {
			return err
		}
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.records {
		if r.ID == id {
			q.records = append(q.records[:i], q.records[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: %w", id, vault.ErrNotFound)
}

// Ping always succeeds.
func (q *MemoryQueue) Ping(context.Context) error { return nil }

// Pending returns the ids still queued, in order.
func (q *MemoryQueue) Pending() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, len(q.records))
	for i, r := range q.records {
		ids[i] = r.ID
	}
	return ids
}

// Deletes returns every id DeleteByID was called with, in call order.
func (q *MemoryQueue) Deletes() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deletes...)
}

// Fetches returns how many times FetchPending was called.
func (q *MemoryQueue) Fetches() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fetches
}

// SetFetchError makes every FetchPending fail with err until reset with nil.
func (q *MemoryQueue) SetFetchError(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.fetchErr = err
}

// OnFetch runs fn at the start of every FetchPending, outside the lock.
func (q *MemoryQueue) OnFetch(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onFetch = fn
}

// OnDelete runs fn before every delete. A non-nil error is returned from
// DeleteByID and the record stays queued.
func (q *MemoryQueue) OnDelete(fn func(id string) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDelete = fn
}
