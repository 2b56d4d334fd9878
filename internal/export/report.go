package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/fields"
)

// SheetName is the worksheet the report row is written to.
const SheetName = "Report"

// Headers are the report column labels, in column order.
var Headers = []string{"Policy Number", "Issued Date"}

// ReportWriter writes a single-row XLSX report to a fixed path. Writes are
// serialized and the target is replaced by rename, so readers see either
// the previous report or the new one.
type ReportWriter struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

func NewReportWriter(path string, logger *slog.Logger) *ReportWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportWriter{path: path, logger: logger}
}

// Path returns the report target path.
func (w *ReportWriter) Path() string { return w.path }

// Write overwrites the report with one data row built from f. Nil values
// become empty cells. Returns the path written.
func (w *ReportWriter) Write(ctx context.Context, f fields.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	start := time.Now()

	buf, err := buildReport(f)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := replaceFile(w.path, buf); err != nil {
		w.logger.Error("export.xlsx.failed", "path", w.path, "job_id", common.JobIDFromContext(ctx), "error", err)
		return "", err
	}

	w.logger.Info("export.xlsx.ok",
		"path", w.path,
		"job_id", common.JobIDFromContext(ctx),
		"policy_number", deref(f.PolicyNumber),
		"issued_date", deref(f.IssuedDate),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return w.path, nil
}

func buildReport(f fields.Fields) ([]byte, error) {
	x := excelize.NewFile()
	defer func() { _ = x.Close() }()

	if err := x.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}
	activeIndex, _ := x.GetSheetIndex(SheetName)
	x.SetActiveSheet(activeIndex)

	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := x.SetCellValue(SheetName, cell, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}
	for i, v := range []*string{f.PolicyNumber, f.IssuedDate} {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		// store as text so long policy numbers keep every digit
		if err := x.SetCellStr(SheetName, cell, deref(v)); err != nil {
			return nil, fmt.Errorf("xlsx row: %w", err)
		}
	}

	_ = x.SetColWidth(SheetName, "A", "A", 24) // policy number
	_ = x.SetColWidth(SheetName, "B", "B", 14) // date

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// replaceFile writes data next to path and renames it into place.
func replaceFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	tmp, err := os.CreateTemp(dir, "."+base+"-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp report: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp report: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp report: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace report: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
