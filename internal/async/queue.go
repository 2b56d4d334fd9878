package async

import (
	"context"
	"errors"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document to process. TraceID, when set, becomes the request id
// of the Process context.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

// Result is delivered to the result handler once per job.
type Result struct {
	Job      Job
	Outcome  pipeline.Outcome
	Err      error
	WorkerID int
}

// Queue accepts jobs until Shutdown.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs the pipeline for one document.
type Processor interface {
	Process(ctx context.Context, path string) (pipeline.Outcome, error)
}

// Feed resolves each path from paths and enqueues it with a fresh trace id,
// until paths is closed or ctx is done. Paths that fail to resolve are skipped.
func Feed(ctx context.Context, paths <-chan string, resolve func(string) (string, error), q Queue, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for path := range paths {
		full, err := resolve(path)
		if err != nil {
			logger.Warn("queue.feed.skip", "path", path, "err", err)
			continue
		}
		job := Job{Path: full, TraceID: uuid.NewString()}
		if err := q.Enqueue(ctx, job); err != nil {
			logger.Warn("queue.feed.enqueue_failed", "path", full, "trace_id", job.TraceID, "err", err)
			if ctx.Err() != nil {
				return
			}
		}
	}
}
