package queue

import (
	"context"
	"sync"
	"time"

	"listraksync/internal/models"
)

// MemoryQueue serves single-process deployments without redis. Jobs do not
// survive a restart.
type MemoryQueue struct {
	jobs chan models.SyncJob
	now  func() time.Time

	mu   sync.Mutex
	dead []DeadLetter
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 1024
	}
	return &MemoryQueue{jobs: make(chan models.SyncJob, size), now: time.Now}
}

// Enqueue blocks while the buffer is full.
func (q *MemoryQueue) Enqueue(ctx context.Context, job models.SyncJob) error {
	select {
	case q.jobs <- stamp(job, q.now()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (models.SyncJob, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case job := <-q.jobs:
		return job, true, nil
	case <-timer.C:
		return models.SyncJob{}, false, nil
	case <-ctx.Done():
		return models.SyncJob{}, false, nil
	}
}

func (q *MemoryQueue) DeadLetter(_ context.Context, job models.SyncJob, cause error) error {
	q.mu.Lock()
	q.dead = append([]DeadLetter{deadLetter(job, cause, q.now())}, q.dead...)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.jobs)), nil
}

func (q *MemoryQueue) DeadLetters(context.Context) ([]DeadLetter, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadLetter, len(q.dead))
	copy(out, q.dead)
	return out, nil
}
