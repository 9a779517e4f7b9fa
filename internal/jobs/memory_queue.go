package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

type claim struct {
	job      Job
	deadline time.Time
}

// MemoryQueue is an in-process Queue used when Redis is disabled. Jobs do not survive
// a restart.
type MemoryQueue struct {
	mu         sync.Mutex
	delayed    map[string]Job
	processing map[string]claim
}

// NewMemoryQueue constructs an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		delayed:    map[string]Job{},
		processing: map[string]claim{},
	}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed[job.ID] = job
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, now time.Time, limit int, visibility time.Duration) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if limit <= 0 {
		limit = 1
	}
	due := make([]Job, 0)
	for _, job := range q.delayed {
		if !job.RunAt.After(now) {
			due = append(due, job)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RunAt.Before(due[j].RunAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, job := range due {
		delete(q.delayed, job.ID)
		q.processing[job.ID] = claim{job: job, deadline: now.Add(visibility)}
	}
	return due, nil
}

func (q *MemoryQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, id)
	delete(q.delayed, id)
	return nil
}

func (q *MemoryQueue) Retry(_ context.Context, job Job, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, job.ID)
	job.RunAt = runAt.UTC()
	q.delayed[job.ID] = job
	return nil
}

func (q *MemoryQueue) ReapExpired(_ context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for id, c := range q.processing {
		if !c.deadline.After(now) {
			delete(q.processing, id)
			c.job.RunAt = now
			q.delayed[id] = c.job
			n++
		}
	}
	return n, nil
}

// Pending returns the number of jobs waiting or claimed.
func (q *MemoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed) + len(q.processing)
}
