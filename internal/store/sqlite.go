package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/veldtlabs/mentorkb/internal/domain"
)

// sqliteSchema mirrors the Postgres migrations with vectors and metadata
// serialized as JSON text. The portable backend targets deployments without
// a pgvector-capable Postgres.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS knowledge_bases (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    domain TEXT NOT NULL,
    sub_domain TEXT,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
    id TEXT PRIMARY KEY,
    kb_id TEXT NOT NULL REFERENCES knowledge_bases(id),
    source_location TEXT NOT NULL,
    file_type TEXT NOT NULL,
    raw_content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS chunks (
    id TEXT PRIMARY KEY,
    kb_id TEXT NOT NULL REFERENCES knowledge_bases(id),
    document_id TEXT REFERENCES documents(id),
    chunk_index INTEGER NOT NULL,
    content TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    embedding TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    deleted_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_chunks_kb_live ON chunks (kb_id, created_at, chunk_index);

CREATE TABLE IF NOT EXISTS ingest_jobs (
    id TEXT PRIMARY KEY,
    kb_id TEXT NOT NULL REFERENCES knowledge_bases(id),
    document_id TEXT NOT NULL REFERENCES documents(id),
    chunk_size INTEGER NOT NULL,
    chunk_overlap INTEGER NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    retries INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    processed_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_ingest_jobs_pending ON ingest_jobs (status, created_at);
`

// SQLiteStore implements Store on SQLite with vectors stored as JSON float
// arrays.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite handles one writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("sqlite: close failed: %v", err)
	}
}

func (s *SQLiteStore) CreateKnowledgeBase(ctx context.Context, kb *domain.KnowledgeBase) error {
	if err := domain.ValidateKnowledgeBase(kb); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_bases (id, owner_id, name, domain, sub_domain, dimension, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		kb.ID, kb.OwnerID, kb.Name, string(kb.Domain), nullableString(kb.SubDomain), kb.Dimension, kb.CreatedAt,
	)
	if err != nil {
		return domain.StorageError("create knowledge base", err)
	}
	return nil
}

func (s *SQLiteStore) GetKnowledgeBase(ctx context.Context, id string) (*domain.KnowledgeBase, error) {
	return s.getKnowledgeBase(ctx, s.db, id)
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) getKnowledgeBase(ctx context.Context, q sqlQuerier, id string) (*domain.KnowledgeBase, error) {
	var kb domain.KnowledgeBase
	var subDomain sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT id, owner_id, name, domain, sub_domain, dimension, created_at
		 FROM knowledge_bases WHERE id = ?`,
		id,
	).Scan(&kb.ID, &kb.OwnerID, &kb.Name, &kb.Domain, &subDomain, &kb.Dimension, &kb.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrKnowledgeBaseNotFound
		}
		return nil, domain.StorageError("get knowledge base", err)
	}
	if subDomain.Valid {
		kb.SubDomain = subDomain.String
	}
	return &kb, nil
}

func (s *SQLiteStore) AddDocument(ctx context.Context, doc *domain.Document) error {
	if err := domain.ValidateDocument(doc); err != nil {
		return err
	}
	if _, err := s.GetKnowledgeBase(ctx, doc.KBID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, kb_id, source_location, file_type, raw_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.KBID, doc.SourceLocation, doc.FileType, doc.RawContent, doc.CreatedAt,
	)
	if err != nil {
		return domain.StorageError("add document", err)
	}
	return nil
}

func (s *SQLiteStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, kb_id, source_location, file_type, raw_content, created_at
		 FROM documents WHERE id = ?`,
		id,
	).Scan(&doc.ID, &doc.KBID, &doc.SourceLocation, &doc.FileType, &doc.RawContent, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, domain.StorageError("get document", err)
	}
	return &doc, nil
}

// AddChunks validates the batch against the knowledge base dimension and
// inserts all rows in one transaction.
func (s *SQLiteStore) AddChunks(ctx context.Context, kbID, documentID string, chunks []*domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StorageError("begin add chunks", err)
	}
	defer func() { _ = tx.Rollback() }()

	kb, err := s.getKnowledgeBase(ctx, tx, kbID)
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
		embedding, err := json.Marshal(c.Embedding)
		if err != nil {
			return domain.StorageError("serialize embedding", err)
		}
		metadata, err := json.Marshal(orEmpty(c.Metadata))
		if err != nil {
			return domain.StorageError("serialize metadata", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chunks (id, kb_id, document_id, chunk_index, content, metadata, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, kbID, nullableString(documentID), c.Index, c.Content, string(metadata), string(embedding), createdAt,
		)
		if err != nil {
			return domain.StorageError("insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.StorageError("commit add chunks", err)
	}
	return nil
}

func (s *SQLiteStore) ChunksByKnowledgeBase(ctx context.Context, kbID string, limit int) ([]*domain.Chunk, error) {
	query := `SELECT id, kb_id, document_id, chunk_index, content, metadata, embedding, created_at
		 FROM chunks
		 WHERE kb_id = ? AND deleted_at IS NULL
		 ORDER BY created_at ASC, chunk_index ASC, id ASC`
	args := []any{kbID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("query chunks", err)
	}
	defer rows.Close()

	chunks := []*domain.Chunk{}
	for rows.Next() {
		var c domain.Chunk
		var documentID sql.NullString
		var metadata, embedding string
		if err := rows.Scan(&c.ID, &c.KBID, &documentID, &c.Index, &c.Content, &metadata, &embedding, &c.CreatedAt); err != nil {
			return nil, domain.StorageError("scan chunk", err)
		}
		if documentID.Valid {
			c.DocumentID = documentID.String
		}
		if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
			return nil, domain.StorageError("deserialize metadata", err)
		}
		if err := json.Unmarshal([]byte(embedding), &c.Embedding); err != nil {
			return nil, domain.StorageError("deserialize embedding", err)
		}
		chunks = append(chunks, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate chunks", err)
	}
	return chunks, nil
}

func (s *SQLiteStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chunks SET deleted_at = ? WHERE document_id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), documentID,
	)
	if err != nil {
		return domain.StorageError("tombstone chunks", err)
	}
	return nil
}

func (s *SQLiteStore) EnqueueIngestJob(ctx context.Context, job *domain.IngestJob) error {
	if err := domain.ValidateIngestJob(job); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_jobs (id, kb_id, document_id, chunk_size, chunk_overlap, status, retries, error, created_at, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.KBID, job.DocumentID, job.ChunkSize, job.Overlap,
		string(job.Status), job.Retries, job.Error, job.CreatedAt, job.ProcessedAt,
	)
	if err != nil {
		return domain.StorageError("enqueue ingest job", err)
	}
	return nil
}

func (s *SQLiteStore) PendingIngestJobs(ctx context.Context, limit int) ([]*domain.IngestJob, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kb_id, document_id, chunk_size, chunk_overlap, status, retries, error, created_at, processed_at
		 FROM ingest_jobs
		 WHERE status = ?
		 ORDER BY created_at ASC
		 LIMIT ?`,
		string(domain.IngestJobStatusPending), limit,
	)
	if err != nil {
		return nil, domain.StorageError("query pending jobs", err)
	}
	defer rows.Close()

	var jobs []*domain.IngestJob
	for rows.Next() {
		var job domain.IngestJob
		var processedAt sql.NullTime
		if err := rows.Scan(&job.ID, &job.KBID, &job.DocumentID, &job.ChunkSize, &job.Overlap,
			&job.Status, &job.Retries, &job.Error, &job.CreatedAt, &processedAt); err != nil {
			return nil, domain.StorageError("scan pending job", err)
		}
		if processedAt.Valid {
			t := processedAt.Time
			job.ProcessedAt = &t
		}
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StorageError("iterate pending jobs", err)
	}
	return jobs, nil
}

func (s *SQLiteStore) UpdateIngestJobStatus(ctx context.Context, jobID string, status domain.IngestJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IngestJobStatusCompleted || status == domain.IngestJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_jobs SET status = ?, error = ?, processed_at = ? WHERE id = ?`,
		string(status), errMsg, processedAt, jobID,
	)
	if err != nil {
		return domain.StorageError("update job status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.StorageError("update job status", err)
	}
	if affected == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func (s *SQLiteStore) IncrementIngestJobRetries(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_jobs SET retries = retries + 1 WHERE id = ?`,
		jobID,
	)
	if err != nil {
		return domain.StorageError("increment job retries", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.StorageError("increment job retries", err)
	}
	if affected == 0 {
		return domain.ErrIngestJobNotFound
	}
	return nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
