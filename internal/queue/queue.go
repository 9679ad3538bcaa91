package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Job is one discrete unit of work. Jobs must keep all durable state in
// storage: a worker crash simply drops the unit, and the next scheduled
// pass picks up from persisted cursors.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Queue is a bounded work queue drained by a fixed worker pool. It
// replaces self-requeuing job recursion with an explicit
// pop-process-push loop: chain continuations are submitted back as new
// jobs so unrelated work can interleave.
type Queue struct {
	jobs    chan Job
	logger  zerolog.Logger
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	workers int
}

func New(logger zerolog.Logger, capacity, workers int) *Queue {
	if capacity <= 0 {
		capacity = 64
	}
	if workers <= 0 {
		workers = 4
	}
	return &Queue{
		jobs:    make(chan Job, capacity),
		logger:  logger,
		workers: workers,
	}
}

// Start launches the worker pool. Workers exit when the queue closes or
// the context is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-q.jobs:
			if !ok {
				return
			}
			jobID := uuid.NewString()
			logger := q.logger.With().Int("worker", id).Str("job", job.Name).Str("job_id", jobID).Logger()
			if err := job.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("job failed")
				continue
			}
			logger.Debug().Msg("job finished")
		}
	}
}

// Submit enqueues a job. A full queue is reported as an error rather
// than blocking the caller, which keeps chain continuations from
// deadlocking against their own pool.
func (q *Queue) Submit(job Job) error {
	if q == nil {
		return fmt.Errorf("queue is not initialized")
	}
	if job.Run == nil {
		return fmt.Errorf("job %q has no run function", job.Name)
	}

	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("queue is closed")
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return fmt.Errorf("queue is full, dropping job %q", job.Name)
	}
}

// Close stops accepting jobs and waits for in-flight work to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	close(q.jobs)
	q.wg.Wait()
}
