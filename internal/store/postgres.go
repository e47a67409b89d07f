package store

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

// Migrations holds the Postgres schema migrations, embedded so the binary
// can migrate without a checkout.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// dbtx is the subset of pgx shared by pools and transactions.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on Postgres with a native pgvector column.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) CreateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO knowledge_bases (id, owner_id, name, domain, sub_domain, dimension, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		kb.ID, kb.OwnerID, kb.Name, kb.Domain, nullableString(kb.SubDomain), kb.Dimension, kb.CreatedAt,
	)
	if err != nil {
		return domain.StorageError("create knowledge base", err)
	}
	return nil
}

func (s *PostgresStore) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return getKnowledgeBasePG(ctx, s.pool, id)
}

func getKnowledgeBasePG(ctx context.Context, db dbtx, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var subDomain pgtype.Text
	err := db.QueryRow(ctx,
		`SELECT id, owner_id, name, domain, sub_domain, dimension, created_at
		 FROM knowledge_bases WHERE id = $1`,
		id,
	).Scan(&kb.ID, &kb.OwnerID, &kb.Name, &kb.Domain, &subDomain, &kb.Dimension, &kb.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, domain.StorageError("get knowledge base", err)
	}
	if subDomain.Valid {
		kb.SubDomain = subDomain.String
	}
	return &kb, nil
}

func (s *PostgresStore) AddDocument(ctx context.Context, doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	if _, err := s.GetKnowledgeBase(ctx, doc.KBID); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, kb_id, source_location, file_type, raw_content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.KBID, doc.SourceLocation, doc.FileType, doc.RawContent, doc.CreatedAt,
	)
	if err != nil {
		return domain.StorageError("add document", err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.pool.QueryRow(ctx,
		`SELECT id, kb_id, source_location, file_type, raw_content, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&doc.ID, &doc.KBID, &doc.SourceLocation, &doc.FileType, &doc.RawContent, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, domain.StorageError("get document", err)
	}
	return &doc, nil
}

// AddChunks validates the batch against the knowledge base dimension and
// inserts all rows in one transaction.
func (s *PostgresStore) AddChunks(ctx context.Context, kbID, documentID string, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.StorageError("begin add chunks", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	kb, err := getKnowledgeBasePG(ctx, tx, kbID)
	if err != nil {
		return err
	}
	if err := validateBatch(kb, chunks); err != nil {
		return err
	}

	for _, c := range chunks {
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		metadata := c.Metadata
		if metadata == nil {
			metadata = map[string]string{}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, kb_id, document_id, chunk_index, content, metadata, embedding, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			c.ID, kbID, nullableString(documentID), c.Index, c.Content, metadata,
			pgvector.NewVector(c.Embedding), createdAt,
		)
		if err != nil {
			return domain.StorageError("insert chunk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit add chunks", err)
	}
	return nil
}

func (s *PostgresStore) ChunksByKnowledgeBase(ctx context.Context, kbID string, limit int) ([]*domain.Chunk, error) {
	query := `SELECT id, kb_id, document_id, chunk_index, content, metadata, embedding, created_at
		 FROM chunks
		 WHERE kb_id = $1 AND deleted_at IS NULL
		 ORDER BY created_at ASC, chunk_index ASC, id ASC`
	args := []any{kbID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("query chunks", err)
	}
	defer rows.Close()

	chunks := []*domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var documentID pgtype.Text
		var embedding pgvector.Vector
		if err := rows.Scan(&c.ID, &c.KBID, &documentID, &c.Index, &c.Content, &c.Metadata, &embedding, &c.CreatedAt); err != nil {
			return nil, domain.StorageError("scan chunk", err)
		}
		if documentID.Valid {
			c.DocumentID = documentID.String
		}
		c.Embedding = embedding.Slice()
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate chunks", err)
	}
	return chunks, nil
}

func (s *PostgresStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE chunks SET deleted_at = $1 WHERE document_id = $2 AND deleted_at IS NULL`,
		time.Now().UTC(), documentID,
	)
	if err != nil {
		return domain.StorageError("tombstone chunks", err)
	}
	return nil
}

func (s *PostgresStore) EnqueueIngestJob(ctx context.Context, job *domain.IngestJob) error {
	if err := domain.ValidateIngestJob(job); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_jobs (id, kb_id, document_id, chunk_size, chunk_overlap, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		job.ID, job.KBID, job.DocumentID, job.ChunkSize, job.Overlap,
		job.Status, job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	if err != nil {
		return domain.StorageError("enqueue ingest job", err)
	}
	return nil
}

func (s *PostgresStore) PendingIngestJobs(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, kb_id, document_id, chunk_size, chunk_overlap, status, retries, error, created_at, processed_at
		 FROM ingest_jobs
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.IngestJobStatusPending, limit,
	)
	if err != nil {
		return nil, domain.StorageError("query pending jobs", err)
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		if err := rows.Scan(&job.ID, &job.KBID, &job.DocumentID, &job.ChunkSize, &job.Overlap,
			&job.Status, &job.Retries, &job.Error, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, domain.StorageError("scan pending job", err)
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate pending jobs", err)
	}
	return jobs, nil
}

func (s *PostgresStore) UpdateIngestJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, errMsg, processedAt, jobID,
	)
	if err != nil {
		return domain.StorageError("update job status", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (s *PostgresStore) IncrementIngestJobRetries(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_jobs SET retries = retries + 1 WHERE id = $1`,
		jobID,
	)
	if err != nil {
		return domain.StorageError("increment job retries", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}
