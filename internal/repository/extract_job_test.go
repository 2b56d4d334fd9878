package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	return db
}

func ptr(s string) *string { return &s }

func TestExtractJobRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	t.Run("success", func(t *testing.T) {
		job, err := repo.Start(ctx, "/docs/policy.pdf")
		require.NoError(t, err)
		assert.Equal(t, string(constants.JobStatusRunning), job.Status)

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, string(constants.JobStatusRunning), got.Status)
		assert.Nil(t, got.FinishedAt)

		err = repo.FinishSuccess(ctx, job.ID, SuccessOutcome{
			PageCount:    2,
			TokenCount:   4,
			Paragraph:    "Policy Number: 271000312419057199",
			PolicyNumber: ptr("271000312419057199"),
			ReportPath:   "/tmp/report.xlsx",
		})
		require.NoError(t, err)

		got, err = repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, string(constants.JobStatusOK), got.Status)
		assert.Equal(t, 4, got.TokenCount)
		assert.Equal(t, 2, got.PageCount)
		require.NotNil(t, got.PolicyNumber)
		assert.Equal(t, "271000312419057199", *got.PolicyNumber)
		assert.Nil(t, got.IssuedDate)
		require.NotNil(t, got.ReportPath)
		assert.Equal(t, "/tmp/report.xlsx", *got.ReportPath)
		require.NotNil(t, got.FinishedAt)
		assert.WithinDuration(t, job.StartedAt, got.StartedAt, time.Microsecond)
	})

	t.Run("failure", func(t *testing.T) {
		job, err := repo.Start(ctx, "/docs/broken.pdf")
		require.NoError(t, err)
		require.NoError(t, repo.FinishFailure(ctx, job.ID, "pdf parse error: bad xref"))

		got, err := repo.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, string(constants.JobStatusFailed), got.Status)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, "pdf parse error: bad xref", *got.ErrorMessage)
		assert.Nil(t, got.ReportPath)
	})

	t.Run("unknown job", func(t *testing.T) {
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, common.ErrNotFound)

		err = repo.FinishFailure(ctx, uuid.New(), "x")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestExtractJobRepository_ListRecent(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil).(*extractJobRepo)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		repo.now = func() time.Time { return at }
		job, err := repo.Start(ctx, "doc.pdf")
		require.NoError(t, err)
		ids = append(ids, job.ID)
	}

	jobs, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, ids[2], jobs[0].ID)
	assert.Equal(t, ids[1], jobs[1].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDB_Rebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE id = $2", pg.Rebind("UPDATE t SET a = ? WHERE id = ?"))

	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "SELECT ?", lite.Rebind("SELECT ?"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	assert.NoError(t, HealthCheck(context.Background(), openTestDB(t), time.Second, nil))
}
