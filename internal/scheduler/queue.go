// Package scheduler provides the durable delayed-delivery task queue the
// engine relies on for turn timeouts, showdown resolution, auto-started
// hands and idle-table closing.
//
// Deliveries are at-least-once: a claimed task that is not acked before
// its lease expires is redelivered. Handlers are safe against that by
// construction because every task carries a zombie-prevention token.
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lox/holdemd/internal/engine"
)

// Delivery is a claimed task plus its queue identity for acking
type Delivery struct {
	ID       int64
	Task     engine.Task
	Attempts int
}

// Queue is a durable delayed task queue
type Queue interface {
	// Enqueue adds a task due at dueAt. Called strictly after the
	// transaction that minted the task's token has committed.
	Enqueue(ctx context.Context, task engine.Task, dueAt time.Time) error

	// Claim leases up to limit due tasks until now+lease. Tasks whose
	// lease lapses without an Ack become claimable again.
	Claim(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error)

	// Ack removes a delivered task
	Ack(ctx context.Context, id int64) error

	Close() error
}

// MemQueue is an in-memory Queue for tests and single-process use
type MemQueue struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*memItem
}

type memItem struct {
	task         engine.Task
	dueAt        time.Time
	claimedUntil time.Time
	attempts     int
}

// NewMemQueue creates an empty in-memory queue
func NewMemQueue() *MemQueue {
	return &MemQueue{items: make(map[int64]*memItem)}
}

func (q *MemQueue) Enqueue(_ context.Context, task engine.Task, dueAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.items[q.nextID] = &memItem{task: task, dueAt: dueAt}
	return nil
}

func (q *MemQueue) Claim(_ context.Context, now time.Time, lease time.Duration, limit int) ([]Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int64, 0, len(q.items))
	for id, item := range q.items {
		if !item.dueAt.After(now) && item.claimedUntil.Before(now) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]Delivery, 0, len(ids))
	for _, id := range ids {
		item := q.items[id]
		item.claimedUntil = now.Add(lease)
		item.attempts++
		out = append(out, Delivery{ID: id, Task: item.task, Attempts: item.attempts})
	}
	return out, nil
}

func (q *MemQueue) Ack(_ context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.items, id)
	return nil
}

func (q *MemQueue) Close() error { return nil }

// Pending returns the number of undelivered tasks. Test helper.
func (q *MemQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
