package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestQueueRunsSubmittedJobs(t *testing.T) {
	t.Parallel()

	q := New(zerolog.Nop(), 8, 2)
	q.Start(context.Background())

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		err := q.Submit(Job{
			Name: "count",
			Run: func(context.Context) error {
				defer wg.Done()
				ran.Add(1)
				return nil
			},
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	wg.Wait()
	q.Close()

	if got := ran.Load(); got != 5 {
		t.Fatalf("expected 5 jobs run, got %d", got)
	}
}

func TestQueueJobFailureDoesNotStopWorkers(t *testing.T) {
	t.Parallel()

	q := New(zerolog.Nop(), 8, 1)
	q.Start(context.Background())

	done := make(chan struct{})
	if err := q.Submit(Job{Name: "broken", Run: func(context.Context) error {
		return errors.New("boom")
	}}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := q.Submit(Job{Name: "after", Run: func(context.Context) error {
		close(done)
		return nil
	}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected the worker to survive a failed job")
	}
	q.Close()
}

func TestQueueFullIsAnErrorNotABlock(t *testing.T) {
	t.Parallel()

	// No workers started, so nothing drains the channel.
	q := New(zerolog.Nop(), 1, 1)

	if err := q.Submit(Job{Name: "first", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := q.Submit(Job{Name: "second", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected full-queue error")
	}
}

func TestQueueRejectsAfterClose(t *testing.T) {
	t.Parallel()

	q := New(zerolog.Nop(), 4, 1)
	q.Start(context.Background())
	q.Close()

	if err := q.Submit(Job{Name: "late", Run: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected submit after close to fail")
	}
}

func TestQueueRejectsJobWithoutRun(t *testing.T) {
	t.Parallel()

	q := New(zerolog.Nop(), 4, 1)
	if err := q.Submit(Job{Name: "empty"}); err == nil {
		t.Fatalf("expected job without run function rejected")
	}
}
