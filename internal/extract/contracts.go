package extract

import (
	"context"

	"github.com/joseph-ayodele/policy-extractor/internal/fields"
	"github.com/joseph-ayodele/policy-extractor/internal/pdftext"
)

// TextExtractor is Stage 1: file -> first-page tokens.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (pdftext.Result, error)
}

// FieldExtractor is Stage 2: tokens -> paragraph + fields.
type FieldExtractor interface {
	Extract(tokens []string) fields.Result
}

// ReportWriter is Stage 3: fields -> report file. Returns the path written.
type ReportWriter interface {
	Write(ctx context.Context, f fields.Fields) (string, error)
}
