package domain

import "time"

// Document represents one ingested source within a knowledge base. RawContent
// holds the full extracted text and is retained for provenance; the document
// loader that produced it is outside this engine.
type Document struct {
	ID             string
	KBID           string
	SourceLocation string
	FileType       string
	RawContent     string
	CreatedAt      time.Time
}

// NewDocument creates a new Document instance
func NewDocument(id, kbID, sourceLocation, fileType, rawContent string, createdAt time.Time) *Document {
	return &Document{
		ID:             id,
		KBID:           kbID,
		SourceLocation: sourceLocation,
		FileType:       fileType,
		RawContent:     rawContent,
		CreatedAt:      createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return NewDomainError(ErrCodeValidation, "document cannot be nil")
	}

	if d.ID == "" {
		return NewDomainError(ErrCodeValidation, "document ID is required")
	}

	if d.KBID == "" {
		return NewDomainError(ErrCodeValidation, "document KBID is required")
	}

	if d.SourceLocation == "" {
		return NewDomainError(ErrCodeValidation, "document SourceLocation is required")
	}

	if d.RawContent == "" {
		return NewDomainError(ErrCodeValidation, "document RawContent is required")
	}

	return nil
}
