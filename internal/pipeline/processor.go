// Package pipeline runs text extraction, field matching and report writing for one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/extract"
	"github.com/joseph-ayodele/policy-extractor/internal/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/metrics"
	"github.com/joseph-ayodele/policy-extractor/internal/pdftext"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

// ErrReport wraps report writer failures.
var ErrReport = errors.New("report write error")

// Outcome is the result of one successful run.
type Outcome struct {
	JobID      uuid.UUID
	Paragraph  string
	Fields     fields.Fields
	Tokens     int
	Pages      int
	ReportPath string
	Duration   time.Duration
}

// Processor coordinates text extraction, then field matching, then the optional report.
type Processor struct {
	logger  *slog.Logger
	text    extract.TextExtractor
	fields  extract.FieldExtractor
	report  extract.ReportWriter
	jobs    repository.ExtractJobRepository
	metrics *metrics.Metrics
}

type Option func(*Processor)

// WithReportWriter enables the report stage.
func WithReportWriter(w extract.ReportWriter) Option {
	return func(p *Processor) { p.report = w }
}

// WithJobRepository records an extract_job row per run.
func WithJobRepository(r repository.ExtractJobRepository) Option {
	return func(p *Processor) { p.jobs = r }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

func NewProcessor(logger *slog.Logger, text extract.TextExtractor, fe extract.FieldExtractor, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{logger: logger, text: text, fields: fe}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process runs the pipeline for an already resolved, existing path.
// Parse failures wrap pdftext.ErrParse; report failures wrap ErrReport.
// Job bookkeeping failures are logged and never fail the run.
func (p *Processor) Process(ctx context.Context, path string) (Outcome, error) {
	start := time.Now()
	jobID := p.startJob(ctx, path)
	ctx = common.WithJobID(ctx, jobID)
	log := p.logger.With("job_id", jobID, "request_id", common.RequestIDFromContext(ctx))

	// 1) text extraction (first page only)
	textRes, err := p.text.Extract(ctx, path)
	if err != nil {
		log.Error("processor.extract.failed", "path", path, "err", err)
		p.failJob(ctx, jobID, err)
		p.observe(metrics.OutcomeParseError, start)
		return Outcome{JobID: jobID}, err
	}
	log.Info("processor.extract.ok",
		"path", path,
		"tokens", len(textRes.Tokens),
		"pages", textRes.Pages,
		"duration_ms", textRes.Duration.Milliseconds(),
	)

	// 2) field matching; a miss is a null field, not an error
	fieldRes := p.fields.Extract(textRes.Tokens)
	for _, name := range fieldRes.Fields.Missing() {
		log.Warn("processor.fields.miss", "field", name)
		if p.metrics != nil {
			p.metrics.FieldMissed(name)
		}
	}

	out := Outcome{
		JobID:     jobID,
		Paragraph: fieldRes.Paragraph,
		Fields:    fieldRes.Fields,
		Tokens:    len(textRes.Tokens),
		Pages:     textRes.Pages,
	}

	// 3) optional report
	if p.report != nil {
		reportPath, err := p.report.Write(ctx, fieldRes.Fields)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrReport, err)
			log.Error("processor.report.failed", "err", err)
			p.failJob(ctx, jobID, err)
			p.observe(metrics.OutcomeReportError, start)
			return out, err
		}
		out.ReportPath = reportPath
	}

	out.Duration = time.Since(start)
	p.finishJob(ctx, out)
	p.observe(metrics.OutcomeOK, start)
	log.Info("processor.ok",
		"policy_number_found", fieldRes.Fields.PolicyNumber != nil,
		"issued_date_found", fieldRes.Fields.IssuedDate != nil,
		"report_path", out.ReportPath,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (p *Processor) startJob(ctx context.Context, path string) uuid.UUID {
	if p.jobs == nil {
		return uuid.Nil
	}
	job, err := p.jobs.Start(ctx, path)
	if err != nil {
		p.logger.Warn("processor.job.start_failed", "path", path, "err", err)
		return uuid.Nil
	}
	return job.ID
}

func (p *Processor) finishJob(ctx context.Context, out Outcome) {
	if p.jobs == nil || out.JobID == uuid.Nil {
		return
	}
	err := p.jobs.FinishSuccess(ctx, out.JobID, repository.SuccessOutcome{
		TokenCount:   out.Tokens,
		PageCount:    out.Pages,
		Paragraph:    out.Paragraph,
		PolicyNumber: out.Fields.PolicyNumber,
		IssuedDate:   out.Fields.IssuedDate,
		ReportPath:   out.ReportPath,
	})
	if err != nil {
		p.logger.Warn("processor.job.finish_failed", "job_id", out.JobID, "err", err)
	}
}

func (p *Processor) failJob(ctx context.Context, jobID uuid.UUID, cause error) {
	if p.jobs == nil || jobID == uuid.Nil {
		return
	}
	// record the failure even when the request context is already done
	if err := p.jobs.FinishFailure(context.WithoutCancel(ctx), jobID, cause.Error()); err != nil {
		p.logger.Warn("processor.job.finish_failed", "job_id", jobID, "err", err)
	}
}

func (p *Processor) observe(outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveExtraction(outcome, time.Since(start))
	}
}

var _ extract.TextExtractor = (*pdftext.Extractor)(nil)
var _ extract.FieldExtractor = (*fields.Matcher)(nil)
