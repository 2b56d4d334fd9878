package entity

import (
	"time"

	"github.com/google/uuid"
)

// ExtractJob is one audit row per processed document.
type ExtractJob struct {
	ID           uuid.UUID  `json:"id"`
	SourcePath   string     `json:"source_path"`
	Status       string     `json:"status"`
	PageCount    int        `json:"page_count"`
	TokenCount   int        `json:"token_count"`
	Paragraph    *string    `json:"paragraph,omitempty"`
	PolicyNumber *string    `json:"policy_number"`
	IssuedDate   *string    `json:"issued_date"`
	ReportPath   *string    `json:"report_path,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
