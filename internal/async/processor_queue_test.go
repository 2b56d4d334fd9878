package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

type countingProcessor struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
	failOn  string
}

func (p *countingProcessor) Process(ctx context.Context, path string) (pipeline.Outcome, error) {
	p.calls.Add(1)
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		m := p.maxSeen.Load()
		if n <= m || p.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return pipeline.Outcome{}, ctx.Err()
	}
	if path == p.failOn {
		return pipeline.Outcome{}, errors.New("boom")
	}
	return pipeline.Outcome{Paragraph: path}, nil
}

func TestProcessorQueue_ProcessesAllJobs(t *testing.T) {
	proc := &countingProcessor{delay: 5 * time.Millisecond, failOn: "c.pdf"}
	var (
		mu      sync.Mutex
		results = map[string]Result{}
	)
	q := NewProcessorQueue(proc, nil,
		WithWorkers(2),
		WithQueueSize(1),
		WithResultHandler(func(r Result) {
			mu.Lock()
			results[r.Job.Path] = r
			mu.Unlock()
		}),
	)

	for _, p := range []string{"a.pdf", "b.pdf", "c.pdf", "d.pdf", "e.pdf"} {
		require.NoError(t, q.Enqueue(context.Background(), Job{Path: p}))
	}
	q.Shutdown(context.Background())

	assert.Equal(t, int32(5), proc.calls.Load())
	assert.LessOrEqual(t, proc.maxSeen.Load(), int32(2))
	require.Len(t, results, 5)
	assert.Error(t, results["c.pdf"].Err)
	assert.NoError(t, results["a.pdf"].Err)
	assert.Equal(t, "a.pdf", results["a.pdf"].Outcome.Paragraph)
	assert.False(t, results["a.pdf"].Job.SubmittedAt.IsZero())
}

func TestProcessorQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewProcessorQueue(&countingProcessor{}, nil, WithWorkers(1))
	q.Shutdown(context.Background())
	q.Shutdown(context.Background())

	err := q.Enqueue(context.Background(), Job{Path: "late.pdf"})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestProcessorQueue_EnqueueHonoursContext(t *testing.T) {
	proc := &countingProcessor{delay: 200 * time.Millisecond}
	q := NewProcessorQueue(proc, nil, WithWorkers(1), WithQueueSize(1))
	t.Cleanup(func() { q.Shutdown(context.Background()) })

	// one job in flight, one buffered
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "1.pdf"}))
	require.Eventually(t, func() bool { return proc.active.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "2.pdf"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := q.Enqueue(ctx, Job{Path: "3.pdf"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessorQueue_ProcessTimeout(t *testing.T) {
	proc := &countingProcessor{delay: time.Second}
	var got Result
	done := make(chan struct{})
	q := NewProcessorQueue(proc, nil,
		WithWorkers(1),
		WithProcessTimeout(10*time.Millisecond),
		WithResultHandler(func(r Result) { got = r; close(done) }),
	)
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "slow.pdf"}))
	<-done
	q.Shutdown(context.Background())
	assert.ErrorIs(t, got.Err, context.DeadlineExceeded)
}

// traceProcessor records the request id each Process call sees.
type traceProcessor struct {
	mu  sync.Mutex
	ids map[string]string
}

func (p *traceProcessor) Process(ctx context.Context, path string) (pipeline.Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids[path] = common.RequestIDFromContext(ctx)
	return pipeline.Outcome{}, nil
}

// recordingQueue keeps enqueued jobs.
type recordingQueue struct {
	jobs []Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) Shutdown(context.Context) {}

func TestProcessorQueue_TraceIDReachesProcessor(t *testing.T) {
	proc := &traceProcessor{ids: map[string]string{}}
	q := NewProcessorQueue(proc, nil, WithWorkers(1))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "a.pdf", TraceID: "trace-a"}))
	require.NoError(t, q.Enqueue(context.Background(), Job{Path: "b.pdf"}))
	q.Shutdown(context.Background())

	assert.Equal(t, map[string]string{"a.pdf": "trace-a", "b.pdf": ""}, proc.ids)
}

func TestFeed(t *testing.T) {
	paths := make(chan string, 3)
	paths <- "/root/a.pdf"
	paths <- "/root/skip.txt"
	paths <- "/root/b.pdf"
	close(paths)

	q := &recordingQueue{}
	resolve := func(p string) (string, error) {
		if filepath.Ext(p) != ".pdf" {
			return "", errors.New("not a pdf")
		}
		return "/resolved" + p, nil
	}
	Feed(context.Background(), paths, resolve, q, nil)

	require.Len(t, q.jobs, 2)
	assert.Equal(t, "/resolved/root/a.pdf", q.jobs[0].Path)
	assert.Equal(t, "/resolved/root/b.pdf", q.jobs[1].Path)
	assert.NotEmpty(t, q.jobs[0].TraceID)
	assert.NotEqual(t, q.jobs[0].TraceID, q.jobs[1].TraceID)
}

func TestFeed_StopsWhenContextDone(t *testing.T) {
	paths := make(chan string, 2)
	paths <- "/root/a.pdf"
	paths <- "/root/b.pdf"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := &recordingQueue{err: context.Canceled}
	done := make(chan struct{})
	go func() {
		Feed(ctx, paths, func(p string) (string, error) { return p, nil }, q, nil)
		close(done)
	}()
	require.Eventually(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Len(t, paths, 1)
}

func TestScanDir(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{
		"b.pdf",
		"a.PDF",
		"notes.txt",
		"sub/c.pdf",
		".hidden/d.pdf",
		".e.pdf",
	} {
		full := filepath.Join(root, p)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("x"), 0o644))
	}

	paths, stats, err := ScanDir(root, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a.PDF"),
		filepath.Join(root, "b.pdf"),
		filepath.Join(root, "sub", "c.pdf"),
	}, paths)
	assert.Equal(t, uint32(3), stats.Matched)

	all, _, err := ScanDir(root, false)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, _, err = ScanDir(filepath.Join(root, "missing"), true)
	assert.Error(t, err)

	_, _, err = ScanDir(" ", true)
	assert.Error(t, err)
}
