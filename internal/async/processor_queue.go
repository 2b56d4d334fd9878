package async

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 256
	defaultTimeout   = 3 * time.Minute
)

// ProcessorQueue fans queued documents out to a fixed pool of workers.
type ProcessorQueue struct {
	proc   Processor
	logger *slog.Logger
	cfg    queueConfig

	jobs    chan Job
	workers sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type queueConfig struct {
	workers   int
	queueSize int
	timeout   time.Duration
	onResult  func(Result)
}

type Option func(*queueConfig)

// WithWorkers sets the pool size; non-positive values keep the default.
func WithWorkers(n int) Option {
	return func(c *queueConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(c *queueConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithProcessTimeout bounds each Process call.
func WithProcessTimeout(d time.Duration) Option {
	return func(c *queueConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithResultHandler is called from worker goroutines; fn must be safe for concurrent use.
func WithResultHandler(fn func(Result)) Option {
	return func(c *queueConfig) { c.onResult = fn }
}

// NewProcessorQueue starts the workers immediately.
func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	cfg := queueConfig{workers: defaultWorkers, queueSize: defaultQueueSize, timeout: defaultTimeout}
	for _, apply := range opts {
		apply(&cfg)
	}

	q := &ProcessorQueue{
		proc:   proc,
		logger: logger,
		cfg:    cfg,
		jobs:   make(chan Job, cfg.queueSize),
	}
	q.workers.Add(cfg.workers)
	for id := 1; id <= cfg.workers; id++ {
		go q.work(id)
	}
	return q
}

// work drains the channel until Shutdown closes it.
func (q *ProcessorQueue) work(workerID int) {
	defer q.workers.Done()
	log := q.logger.With("worker_id", workerID)
	log.Debug("queue.worker.start")

	for job := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.cfg.timeout)
		if job.TraceID != "" {
			ctx = common.WithRequestID(ctx, job.TraceID)
		}
		out, err := q.proc.Process(ctx, job.Path)
		cancel()

		if err != nil {
			log.Error("queue.job.failed", "path", job.Path, "trace_id", job.TraceID,
				"waited_ms", time.Since(job.SubmittedAt).Milliseconds(), "err", err)
		} else {
			log.Info("queue.job.ok", "path", job.Path, "trace_id", job.TraceID, "job_id", out.JobID)
		}
		if q.cfg.onResult != nil {
			q.cfg.onResult(Result{Job: job, Outcome: out, Err: err, WorkerID: workerID})
		}
	}
	log.Debug("queue.worker.stop")
}

// Enqueue blocks while the queue is full, until ctx is done.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.jobs <- job:
		q.logger.Debug("queue.enqueue.ok", "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.full", "path", job.Path, "capacity", cap(q.jobs))
	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown stops intake and waits for queued jobs to finish, or for ctx.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted", "err", ctx.Err())
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}

var _ Queue = (*ProcessorQueue)(nil)
