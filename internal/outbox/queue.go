// Package outbox runs background jobs on a fixed set of workers fed by a
// bounded in-memory queue.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrQueueFull is returned by Enqueue when every slot is taken.
	ErrQueueFull = errors.New("outbox queue is full")
	// ErrClosed is returned by Enqueue after Close.
	ErrClosed = errors.New("outbox is closed")
	// ErrNotStarted marks jobs returned by Close because no worker ever ran.
	ErrNotStarted = errors.New("outbox closed before workers started")
)

// Handler processes one job.
type Handler[T any] func(ctx context.Context, job T) error

// Config sizes the queue.
type Config struct {
	Workers  int
	Capacity int
	// JobTimeout bounds each handler call. Zero means no limit.
	JobTimeout time.Duration
}

// Queue is a bounded job queue drained by worker goroutines.
type Queue[T any] struct {
	cfg    Config
	jobs   chan T
	logger *logrus.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a queue. Jobs are accepted immediately but only run after Start.
func New[T any](cfg Config, logger *logrus.Logger) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Queue[T]{
		cfg:    cfg,
		jobs:   make(chan T, cfg.Capacity),
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the workers. Cancelling ctx aborts running jobs; use Close
// for an orderly stop.
func (q *Queue[T]) Start(ctx context.Context, handler Handler[T]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return
	}
	q.started = true

	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	var g errgroup.Group
	for worker := range q.cfg.Workers {
		g.Go(func() error {
			for job := range q.jobs {
				q.run(runCtx, worker, handler, job)
			}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(q.done)
	}()

	q.logger.WithFields(logrus.Fields{
		"workers":  q.cfg.Workers,
		"capacity": q.cfg.Capacity,
	}).Info("Outbox: workers started")
}

func (q *Queue[T]) run(ctx context.Context, worker int, handler Handler[T], job T) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.WithField("worker", worker).Errorf("Outbox: job panicked: %v", r)
		}
	}()

	if q.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.cfg.JobTimeout)
		defer cancel()
	}

	if err := handler(ctx, job); err != nil {
		q.logger.WithError(err).WithField("worker", worker).Error("Outbox: job failed")
	}
}

// Enqueue adds a job without blocking.
func (q *Queue[T]) Enqueue(job T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of jobs waiting for a worker.
func (q *Queue[T]) Len() int {
	return len(q.jobs)
}

// Close stops accepting jobs and waits for queued and running jobs to finish.
// If ctx expires first, running jobs are cancelled and ctx's error returned.
// When the workers were never started, the queued jobs are returned unrun so
// the caller can settle them.
func (q *Queue[T]) Close(ctx context.Context) ([]T, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, nil
	}
	q.closed = true
	close(q.jobs)
	started := q.started
	q.mu.Unlock()

	if !started {
		var dropped []T
		for job := range q.jobs {
			dropped = append(dropped, job)
		}
		if len(dropped) > 0 {
			q.logger.WithField("dropped", len(dropped)).Warn("Outbox: closed before start")
		}
		return dropped, nil
	}

	select {
	case <-q.done:
		q.cancel()
		return nil, nil
	case <-ctx.Done():
		q.cancel()
		<-q.done
		return nil, fmt.Errorf("outbox drain interrupted: %w", ctx.Err())
	}
}
