package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/joseph-ayodele/policy-extractor/internal/async"
	"github.com/joseph-ayodele/policy-extractor/internal/export"
	"github.com/joseph-ayodele/policy-extractor/internal/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/pdftext"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
)

type result struct {
	Path         string  `json:"path,omitempty"`
	PolicyNumber *string `json:"policyNumber"`
	IssuedDate   *string `json:"issuedDate"`
	Paragraph    string  `json:"paragraph,omitempty"`
	Pages        int     `json:"pages,omitempty"`
	ReportPath   string  `json:"reportPath,omitempty"`
	DurationMs   int64   `json:"durationMs"`
	Error        string  `json:"error,omitempty"`
}

func toResult(path string, out pipeline.Outcome, err error) result {
	r := result{
		Path:         path,
		PolicyNumber: out.Fields.PolicyNumber,
		IssuedDate:   out.Fields.IssuedDate,
		Paragraph:    out.Paragraph,
		Pages:        out.Pages,
		ReportPath:   out.ReportPath,
		DurationMs:   out.Duration.Milliseconds(),
	}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func main() {
	var (
		out     = flag.String("out", "", "write the XLSX report to this path (single file mode only)")
		dir     = flag.String("dir", "", "process every PDF under this directory")
		workers = flag.Int("workers", 4, "concurrent documents in -dir mode")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	switch {
	case *dir != "" && (*out != "" || flag.NArg() != 0):
		logger.Error("usage", "cmd", "runextract -dir DIR [-workers N]")
		os.Exit(2)
	case *dir == "" && flag.NArg() != 1:
		logger.Error("usage", "cmd", "runextract [-out report.xlsx] <file.pdf>")
		os.Exit(2)
	}

	var opts []pipeline.Option
	if *out != "" {
		opts = append(opts, pipeline.WithReportWriter(export.NewReportWriter(*out, logger)))
	}
	p := pipeline.NewProcessor(logger, pdftext.NewExtractor(nil, logger), fields.NewMatcher(nil, logger), opts...)

	if *dir != "" {
		os.Exit(runDir(p, *dir, *workers, logger))
	}

	path := flag.Arg(0)
	if _, err := os.Stat(path); err != nil {
		logger.Error("file does not exist", "path", path, "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := p.Process(ctx, path)
	if err != nil {
		logger.Error("extraction failed", "path", path, "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(toResult("", res, nil)); err != nil {
		fmt.Fprintf(os.Stderr, "encode result: %v\n", err)
		os.Exit(1)
	}
}

// runDir prints one JSON line per document and returns the exit code.
func runDir(p *pipeline.Processor, dir string, workers int, logger *slog.Logger) int {
	paths, stats, err := async.ScanDir(dir, true)
	if err != nil {
		logger.Error("scan failed", "dir", dir, "error", err)
		return 2
	}
	logger.Info("scan complete", "dir", dir, "scanned", stats.Scanned, "matched", stats.Matched, "failed", stats.Failed)

	var (
		mu     sync.Mutex
		failed int
		enc    = json.NewEncoder(os.Stdout)
	)
	q := async.NewProcessorQueue(p, logger,
		async.WithWorkers(workers),
		async.WithProcessTimeout(2*time.Minute),
		async.WithResultHandler(func(r async.Result) {
			mu.Lock()
			defer mu.Unlock()
			if r.Err != nil {
				failed++
			}
			_ = enc.Encode(toResult(r.Job.Path, r.Outcome, r.Err))
		}),
	)
	for _, path := range paths {
		if err := q.Enqueue(context.Background(), async.Job{Path: path}); err != nil {
			logger.Error("enqueue failed", "path", path, "error", err)
		}
	}
	q.Shutdown(context.Background())

	if failed > 0 {
		return 1
	}
	return 0
}
