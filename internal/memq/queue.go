package memq

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fedutinova/minedash/internal/job"
	"github.com/google/uuid"
)

// JobHandler runs one job. It receives a private copy; setting Result on it
// is recorded when the handler succeeds.
type JobHandler func(ctx context.Context, j *job.Job) error

type JobQueue interface {
	Enqueue(ctx context.Context, j *job.Job) (uuid.UUID, error)
	Status(ctx context.Context, id uuid.UUID) (*job.Job, bool)
	Recent(n int) []*job.Job
	StartConsumers(ctx context.Context, n int, handler JobHandler)
	Len() int
	Close() error
}

var ErrQueueClosed = errors.New("queue closed")

type memQueue struct {
	buf     chan *job.Job
	maxWait time.Duration

	mu   sync.RWMutex
	jobs map[uuid.UUID]*job.Job

	// sendMu guards closed and every send on buf.
	sendMu sync.RWMutex
	closed bool

	wg sync.WaitGroup
}

func NewMemoryQueue(buffer int, maxJobDuration time.Duration) JobQueue {
	return &memQueue{
		buf:     make(chan *job.Job, buffer),
		maxWait: maxJobDuration,
		jobs:    make(map[uuid.UUID]*job.Job, buffer),
	}
}

func (q *memQueue) Enqueue(ctx context.Context, j *job.Job) (uuid.UUID, error) {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	j.Status = job.StatusQueued
	j.Enqueued = time.Now()

	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		return uuid.Nil, ErrQueueClosed
	}

	stored := j.Clone()
	q.mu.Lock()
	q.jobs[j.ID] = stored
	q.mu.Unlock()

	select {
	case q.buf <- stored:
		return j.ID, nil
	case <-ctx.Done():
		q.mu.Lock()
		delete(q.jobs, j.ID)
		q.mu.Unlock()
		return uuid.Nil, ctx.Err()
	}
}

// Status returns a snapshot of the job; later progress is not reflected.
func (q *memQueue) Status(ctx context.Context, id uuid.UUID) (*job.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return j.Clone(), true
}

// Recent returns up to n jobs, newest first.
func (q *memQueue) Recent(n int) []*job.Job {
	q.mu.RLock()
	out := make([]*job.Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.Clone())
	}
	q.mu.RUnlock()

	sort.Slice(out, func(a, b int) bool { return out[a].Enqueued.After(out[b].Enqueued) })
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (q *memQueue) StartConsumers(ctx context.Context, n int, handler JobHandler) {
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func(workerID int) {
			defer q.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case j, ok := <-q.buf:
					if !ok {
						return
					}
					q.run(ctx, workerID, j, handler)
				}
			}
		}(i + 1)
	}
}

func (q *memQueue) run(ctx context.Context, workerID int, j *job.Job, handler JobHandler) {
	now := time.Now()
	q.mu.Lock()
	j.Status = job.StatusRunning
	j.Started = &now
	work := j.Clone()
	q.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, q.maxWait)
	err := handler(runCtx, work)
	cancel()

	fin := time.Now()
	q.mu.Lock()
	j.Finished = &fin
	if err != nil {
		j.Status = job.StatusFailed
		j.Error = err.Error()
	} else {
		j.Status = job.StatusSucceeded
		j.Result = work.Result
	}
	q.mu.Unlock()

	if err != nil {
		slog.Error("job failed", "id", j.ID, "type", j.Type, "err", err, "worker", workerID)
	} else {
		slog.Info("job done", "id", j.ID, "type", j.Type, "worker", workerID, "duration", fin.Sub(now))
	}
}

func (q *memQueue) Len() int {
	return len(q.buf)
}

// Close stops accepting jobs and waits for the consumers to drain the
// buffer. Consumers whose context is already cancelled exit without
// draining.
func (q *memQueue) Close() error {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return nil
	}
	q.closed = true
	close(q.buf)
	q.sendMu.Unlock()
	q.wg.Wait()
	return nil
}
