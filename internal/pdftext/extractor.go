// Package pdftext turns the first page of a PDF into an ordered list of text tokens.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrParse wraps every failure reported by the underlying Source.
var ErrParse = errors.New("pdf parse error")

// Result is the first-page token stream of one document. Pages is the
// document's page count as reported by the source, or the highest page
// marker seen when the source does not report one.
type Result struct {
	Tokens   []string
	Pages    int
	Duration time.Duration
}

type Extractor struct {
	source Source
	logger *slog.Logger
}

func NewExtractor(source Source, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if source == nil {
		source = LedongthucSource{}
	}
	return &Extractor{source: source, logger: logger}
}

// Extract collects text fragments until the stream moves past page 1.
// Tokens seen before any page marker count as page 1. On error the
// partially collected tokens are discarded.
func (e *Extractor) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	e.logger.Debug("pdftext.extract.start", "path", path)

	var tokens []string
	currentPage, pages := 0, 0
	err := e.source.Items(ctx, path, func(it Item) error {
		if it.Page > 0 {
			currentPage = it.Page
			pages = max(pages, it.Page, it.Pages)
		}
		if currentPage > 1 {
			return ErrStop
		}
		if it.Text != "" {
			tokens = append(tokens, it.Text)
		}
		return nil
	})
	if err != nil {
		e.logger.Error("pdftext.extract.failed", "path", path, "error", err)
		return Result{Duration: time.Since(start)}, fmt.Errorf("%w: %w", ErrParse, err)
	}

	if pages == 0 && len(tokens) > 0 {
		pages = 1
	}
	res := Result{Tokens: tokens, Pages: pages, Duration: time.Since(start)}
	e.logger.Debug("pdftext.extract.ok",
		"path", path,
		"tokens", len(tokens),
		"pages", pages,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
