package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/veldtlabs/mentorkb/internal/domain"
	"github.com/veldtlabs/mentorkb/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3

	// pendingBatchSize bounds how many queued jobs one poll claims
	pendingBatchSize = 10
)

// IngestJobStore defines the persistence interface for ingest jobs
type IngestJobStore interface {
	PendingIngestJobs(ctx context.Context, limit int) ([]*domain.IngestJob, error)
	UpdateIngestJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error
	IncrementIngestJobRetries(ctx context.Context, jobID string) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
}

// Ingestor runs the chunk, embed, persist pipeline for one document
type Ingestor interface {
	IngestChunks(ctx context.Context, kbID, documentID, rawText string, chunkSize, overlap int) (int, error)
}

// IngestWorker processes queued document ingestion jobs
type IngestWorker struct {
	store    IngestJobStore
	ingestor Ingestor
}

// NewIngestWorker creates a new IngestWorker instance
func NewIngestWorker(store IngestJobStore, ingestor Ingestor) *IngestWorker {
	return &IngestWorker{store: store, ingestor: ingestor}
}

// ProcessJobs implements the JobProcessor interface. Each job is one
// document; a cancelled context abandons the in-flight document but leaves
// already-completed ones searchable.
func (w *IngestWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.store.PendingIngestJobs(ctx, pendingBatchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("processing %d pending ingest jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("ingest job %s: %v", job.ID, err)
			telemetry.CaptureError(ctx, err)
		}
	}

	return nil
}

func (w *IngestWorker) processJob(ctx context.Context, job *domain.IngestJob) error {
	if err := w.store.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusProcessing, ""); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}

	count, err := w.runJob(ctx, job)
	if err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.store.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to mark job completed: %w", err)
	}

	log.Printf("ingest job %s completed: %d chunks for document %s", job.ID, count, job.DocumentID)
	return nil
}

func (w *IngestWorker) runJob(ctx context.Context, job *domain.IngestJob) (int, error) {
	doc, err := w.store.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return 0, err
	}
	return w.ingestor.IngestChunks(ctx, job.KBID, doc.ID, doc.RawContent, job.ChunkSize, job.Overlap)
}

// handleJobFailure requeues a failed job until MaxRetries, then marks it
// failed for good.
func (w *IngestWorker) handleJobFailure(ctx context.Context, job *domain.IngestJob, jobErr error) error {
	log.Printf("ingest job %s failed: %v", job.ID, jobErr)

	if err := w.store.IncrementIngestJobRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("ingest job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.store.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to mark job failed: %w", err)
		}
		return nil
	}

	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.store.UpdateIngestJobStatus(ctx, job.ID, domain.IngestJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to requeue job: %w", err)
	}

	return nil
}
