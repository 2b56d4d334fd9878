package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/documents"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/pdftext"
	"github.com/joseph-ayodele/policy-extractor/internal/pipeline"
	"github.com/joseph-ayodele/policy-extractor/internal/repository"
)

const maxBodyBytes = 64 << 10

// Client-facing error messages.
const (
	msgFileNotExist    = "File does not exist"
	msgInvalidRequest  = "Invalid request"
	msgProcessingError = "Error processing PDF"
	msgReportError     = "Error writing report"
	msgJobNotFound     = "Job not found"
	msgInternal        = "Internal error"
)

// Processor runs the extraction pipeline for one resolved document.
type Processor interface {
	Process(ctx context.Context, path string) (pipeline.Outcome, error)
}

type processResponse struct {
	PolicyNumber *string `json:"policyNumber"`
	IssuedDate   *string `json:"issuedDate"`
	Paragraph    *string `json:"paragraph,omitempty"`
	JobID        string  `json:"jobId,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ProcessHandler serves POST /process-pdf.
type ProcessHandler struct {
	processor        Processor
	resolver         *documents.Resolver
	schema           *jsonschema.Schema
	includeParagraph bool
	logger           *slog.Logger
}

func NewProcessHandler(p Processor, resolver *documents.Resolver, includeParagraph bool, logger *slog.Logger) (*ProcessHandler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := compileSchema("process-request.json", processRequestSchema)
	if err != nil {
		return nil, err
	}
	return &ProcessHandler{
		processor:        p,
		resolver:         resolver,
		schema:           schema,
		includeParagraph: includeParagraph,
		logger:           logger,
	}, nil
}

func (h *ProcessHandler) ProcessPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.With("request_id", common.RequestIDFromContext(ctx))

	contentType := r.Header.Get("Content-Type")
	var body []byte
	if isJSON(contentType) {
		var err error
		if body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes)); err != nil {
			log.Warn("process.body.read_failed", "err", err)
			writeError(w, http.StatusBadRequest, msgInvalidRequest)
			return
		}
	}
	req, err := decodeProcessRequest(h.schema, contentType, body)
	if err != nil {
		log.Warn("process.body.invalid", "err", err)
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	path, err := h.resolver.Resolve(req.Path)
	switch {
	case errors.Is(err, documents.ErrNotExist):
		log.Warn("process.document.missing", "path", req.Path, "err", err)
		writeError(w, http.StatusBadRequest, msgFileNotExist)
		return
	case err != nil:
		log.Warn("process.document.rejected", "path", req.Path, "err", err)
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	out, err := h.processor.Process(ctx, path)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// the timeout middleware owns the response once the deadline passes
		log.Warn("process.timeout", "path", path, "err", err)
		return
	case errors.Is(err, pipeline.ErrReport):
		writeError(w, http.StatusInternalServerError, msgReportError)
		return
	case errors.Is(err, pdftext.ErrParse):
		writeError(w, http.StatusInternalServerError, msgProcessingError)
		return
	case err != nil:
		log.Error("process.failed", "path", path, "err", err)
		writeError(w, http.StatusInternalServerError, msgProcessingError)
		return
	}

	resp := processResponse{
		PolicyNumber: out.Fields.PolicyNumber,
		IssuedDate:   out.Fields.IssuedDate,
	}
	if h.includeParagraph {
		resp.Paragraph = &out.Paragraph
	}
	if out.JobID != uuid.Nil {
		resp.JobID = out.JobID.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// JobsHandler serves the extract_job audit trail.
type JobsHandler struct {
	jobs   repository.ExtractJobRepository
	logger *slog.Logger
}

func NewJobsHandler(jobs repository.ExtractJobRepository, logger *slog.Logger) *JobsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobsHandler{jobs: jobs, logger: logger}
}

type jobView struct {
	ID           string     `json:"id"`
	SourcePath   string     `json:"sourcePath"`
	Status       string     `json:"status"`
	PageCount    int        `json:"pageCount"`
	TokenCount   int        `json:"tokenCount"`
	PolicyNumber *string    `json:"policyNumber"`
	IssuedDate   *string    `json:"issuedDate"`
	ReportPath   *string    `json:"reportPath,omitempty"`
	Error        *string    `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

func toJobView(j *entity.ExtractJob) jobView {
	return jobView{
		ID:           j.ID.String(),
		SourcePath:   j.SourcePath,
		Status:       j.Status,
		PageCount:    j.PageCount,
		TokenCount:   j.TokenCount,
		PolicyNumber: j.PolicyNumber,
		IssuedDate:   j.IssuedDate,
		ReportPath:   j.ReportPath,
		Error:        j.ErrorMessage,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, msgInvalidRequest)
			return
		}
		limit = n
	}
	jobs, err := h.jobs.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("jobs.list.failed", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	out := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	job, err := h.jobs.Get(r.Context(), id)
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, msgJobNotFound)
		return
	case err != nil:
		h.logger.Error("jobs.get.failed", "job_id", id, "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	writeJSON(w, http.StatusOK, toJobView(job))
}

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	resolver *documents.Resolver
	db       *repository.DB
	logger   *slog.Logger
}

func NewHealthHandler(resolver *documents.Resolver, db *repository.DB, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthHandler{resolver: resolver, db: db, logger: logger}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"documents": "ok"}
	status := http.StatusOK
	if err := h.resolver.CheckRoot(); err != nil {
		checks["documents"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if h.db != nil {
		checks["database"] = "ok"
		if err := repository.HealthCheck(r.Context(), h.db, 2*time.Second, h.logger); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, checks)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
