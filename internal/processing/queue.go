package processing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"docqr-backend/internal/shared/metrics"
	"docqr-backend/internal/shared/telemetry"
)

var (
	ErrQueueFull   = errors.New("processing queue is full")
	ErrQueueClosed = errors.New("processing queue is closed")
)

const (
	DefaultWorkers    = 4
	DefaultCapacity   = 100
	DefaultJobTimeout = 5 * time.Minute
)

// Job is one queued processing request.
type Job struct {
	DocumentID string
	RequestID  string
	EnqueuedAt time.Time
}

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, documentID string) error
}

// QueueOptions sizes the queue and its worker pool.
type QueueOptions struct {
	Workers    int
	Capacity   int
	JobTimeout time.Duration
}

// Queue is a bounded in-process job queue drained by a fixed worker pool.
// Jobs are not persisted; anything still queued at shutdown is dropped.
type Queue struct {
	jobs       chan Job
	pool       *ants.Pool
	proc       Processor
	jobTimeout time.Duration

	mu     sync.RWMutex
	closed bool

	stop     chan struct{}
	done     chan struct{}
	inflight sync.WaitGroup
}

// NewQueue starts the dispatcher and the worker pool.
func NewQueue(opts QueueOptions, proc Processor) (*Queue, error) {
	if proc == nil {
		return nil, errors.New("processor is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = DefaultJobTimeout
	}

	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(p any) {
		telemetry.Error("processing.worker_panic", map[string]any{"error": fmt.Sprint(p)})
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	q := &Queue{
		jobs:       make(chan Job, opts.Capacity),
		pool:       pool,
		proc:       proc,
		jobTimeout: opts.JobTimeout,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go q.dispatch()
	return q, nil
}

// Enqueue adds a job without blocking. It fails with ErrQueueFull when the
// buffer is saturated and ErrQueueClosed after Shutdown.
func (q *Queue) Enqueue(ctx context.Context, documentID string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	job := Job{
		DocumentID: documentID,
		RequestID:  telemetry.RequestIDFromContext(ctx),
		EnqueuedAt: time.Now().UTC(),
	}
	select {
	case q.jobs <- job:
		metrics.SetQueueDepth(len(q.jobs))
		return nil
	default:
		telemetry.Warn("processing.queue_full", map[string]any{
			"document_id": documentID,
			"request_id":  job.RequestID,
			"capacity":    cap(q.jobs),
		})
		return ErrQueueFull
	}
}

// Depth is the number of jobs waiting for a worker.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Capacity is the queue's buffer size.
func (q *Queue) Capacity() int {
	return cap(q.jobs)
}

func (q *Queue) dispatch() {
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		select {
		case <-q.stop:
			return
		case job := <-q.jobs:
			metrics.SetQueueDepth(len(q.jobs))
			q.inflight.Add(1)
			// Submit blocks while every worker is busy; the channel absorbs the backlog.
			if err := q.pool.Submit(func() {
				defer q.inflight.Done()
				q.run(job)
			}); err != nil {
				q.inflight.Done()
				telemetry.Error("processing.submit_failed", map[string]any{
					"document_id": job.DocumentID,
					"request_id":  job.RequestID,
					"error":       err.Error(),
				})
			}
		}
	}
}

func (q *Queue) run(job Job) {
	ctx := telemetry.WithRequestID(context.Background(), job.RequestID)
	ctx, cancel := context.WithTimeout(ctx, q.jobTimeout)
	defer cancel()

	telemetry.Debug("processing.job_started", map[string]any{
		"document_id": job.DocumentID,
		"request_id":  job.RequestID,
		"wait_ms":     float64(time.Since(job.EnqueuedAt).Microseconds()) / 1000.0,
	})
	_ = q.proc.Process(ctx, job.DocumentID)
}

// Shutdown stops accepting jobs, waits for running jobs until ctx expires,
// and drops whatever is still queued.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.stop)
	select {
	case <-q.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	abandoned := 0
drain:
	for {
		select {
		case job := <-q.jobs:
			abandoned++
			telemetry.Warn("processing.job_abandoned", map[string]any{
				"document_id": job.DocumentID,
				"request_id":  job.RequestID,
			})
		default:
			break drain
		}
	}
	metrics.SetQueueDepth(0)

	finished := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		err = ctx.Err()
	}
	q.pool.Release()
	telemetry.Info("processing.queue_stopped", map[string]any{"abandoned": abandoned, "timed_out": err != nil})
	return err
}
