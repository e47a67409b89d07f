package domain

import (
	"fmt"
	"time"
)

// IngestJobStatus represents the status of an ingest job
type IngestJobStatus string

const (
	IngestJobStatusPending    IngestJobStatus = "pending"
	IngestJobStatusProcessing IngestJobStatus = "processing"
	IngestJobStatusCompleted  IngestJobStatus = "completed"
	IngestJobStatusFailed     IngestJobStatus = "failed"
)

// IngestJob represents one background unit of ingestion work: chunk, embed,
// and persist a single document. Units for different documents run
// independently; there is no coordination across jobs.
type IngestJob struct {
	ID          string
	KBID        string
	DocumentID  string
	ChunkSize   int
	Overlap     int
	Status      IngestJobStatus
	Retries     int32
	Error       string
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// NewIngestJob creates a new IngestJob instance
func NewIngestJob(id, kbID, documentID string, chunkSize, overlap int, createdAt time.Time) *IngestJob {
	return &IngestJob{
		ID:         id,
		KBID:       kbID,
		DocumentID: documentID,
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Status:     IngestJobStatusPending,
		CreatedAt:  createdAt,
	}
}

// ValidateIngestJob validates an IngestJob instance
func ValidateIngestJob(j *IngestJob) error {
	if j == nil {
		return NewDomainError(ErrCodeValidation, "ingest job cannot be nil")
	}

	if j.ID == "" {
		return NewDomainError(ErrCodeValidation, "ingest job ID is required")
	}

	if j.KBID == "" {
		return NewDomainError(ErrCodeValidation, "ingest job KBID is required")
	}

	if j.DocumentID == "" {
		return NewDomainError(ErrCodeValidation, "ingest job DocumentID is required")
	}

	if !isValidIngestJobStatus(j.Status) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("ingest job Status is invalid: %s", j.Status))
	}

	if j.Retries < 0 {
		return NewDomainError(ErrCodeValidation, "ingest job Retries cannot be negative")
	}

	return nil
}

// isValidIngestJobStatus checks if an IngestJobStatus is valid
func isValidIngestJobStatus(s IngestJobStatus) bool {
	switch s {
	case IngestJobStatusPending, IngestJobStatusProcessing,
		IngestJobStatusCompleted, IngestJobStatusFailed:
		return true
	}
	return false
}
