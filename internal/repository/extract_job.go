package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// timeLayout is fixed-width so TEXT ordering matches chronological ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SuccessOutcome is what a finished extraction records.
type SuccessOutcome struct {
	PageCount    int
	TokenCount   int
	Paragraph    string
	PolicyNumber *string
	IssuedDate   *string
	ReportPath   string
}

type ExtractJobRepository interface {
	Start(ctx context.Context, sourcePath string) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, out SuccessOutcome) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *extractJobRepo) Start(ctx context.Context, sourcePath string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:         uuid.New(),
		SourcePath: sourcePath,
		Status:     string(constants.JobStatusRunning),
		StartedAt:  r.now(),
	}
	_, err := r.db.SQL.ExecContext(ctx,
		r.db.Rebind(`INSERT INTO extract_job (id, source_path, status, started_at) VALUES (?, ?, ?, ?)`),
		job.ID.String(), job.SourcePath, job.Status, job.StartedAt.Format(timeLayout),
	)
	if err != nil {
		r.log.Error("extract_job start failed", "source_path", sourcePath, "err", err)
		return nil, fmt.Errorf("%w: start job: %w", common.ErrDatabase, err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "source_path", sourcePath)
	return job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, out SuccessOutcome) error {
	res, err := r.db.SQL.ExecContext(ctx,
		r.db.Rebind(`UPDATE extract_job
			SET status = ?, page_count = ?, token_count = ?, paragraph = ?, policy_number = ?, issued_date = ?, report_path = ?, finished_at = ?
			WHERE id = ?`),
		string(constants.JobStatusOK), out.PageCount, out.TokenCount, out.Paragraph,
		nullString(out.PolicyNumber), nullString(out.IssuedDate), emptyAsNull(out.ReportPath),
		r.now().Format(timeLayout), jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("%w: finish job: %w", common.ErrDatabase, err)
	}
	if err := expectOneRow(res, jobID); err != nil {
		return err
	}
	r.log.Info("extract_job finished (OK)", "job_id", jobID, "pages", out.PageCount, "tokens", out.TokenCount)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	res, err := r.db.SQL.ExecContext(ctx,
		r.db.Rebind(`UPDATE extract_job SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`),
		string(constants.JobStatusFailed), message, r.now().Format(timeLayout), jobID.String(),
	)
	if err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return fmt.Errorf("%w: finish job: %w", common.ErrDatabase, err)
	}
	if err := expectOneRow(res, jobID); err != nil {
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

const selectColumns = `SELECT id, source_path, status, page_count, token_count, paragraph, policy_number, issued_date,
	report_path, error_message, started_at, finished_at FROM extract_job`

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	row := r.db.SQL.QueryRowContext(ctx, r.db.Rebind(selectColumns+` WHERE id = ?`), jobID.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError(common.CodeNotFound, "extract job "+jobID.String(), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", common.ErrDatabase, err)
	}
	return job, nil
}

func (r *extractJobRepo) ListRecent(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.SQL.QueryContext(ctx, r.db.Rebind(selectColumns+` ORDER BY started_at DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []*entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan job: %w", common.ErrDatabase, err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list jobs: %w", common.ErrDatabase, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*entity.ExtractJob, error) {
	var (
		job                                                      entity.ExtractJob
		id, startedAt                                            string
		paragraph, policy, issued, report, errMsg, finishedAtStr sql.NullString
	)
	if err := s.Scan(&id, &job.SourcePath, &job.Status, &job.PageCount, &job.TokenCount, &paragraph, &policy, &issued,
		&report, &errMsg, &startedAt, &finishedAtStr); err != nil {
		return nil, err
	}

	var err error
	if job.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	if job.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finishedAtStr.Valid {
		t, err := time.Parse(timeLayout, finishedAtStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		job.FinishedAt = &t
	}
	job.Paragraph = stringPtr(paragraph)
	job.PolicyNumber = stringPtr(policy)
	job.IssuedDate = stringPtr(issued)
	job.ReportPath = stringPtr(report)
	job.ErrorMessage = stringPtr(errMsg)
	return &job, nil
}

func expectOneRow(res sql.Result, jobID uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", common.ErrDatabase, err)
	}
	if n == 0 {
		return common.NewAppError(common.CodeNotFound, "extract job "+jobID.String(), common.ErrNotFound)
	}
	return nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func emptyAsNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
