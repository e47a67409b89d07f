package domain

import (
	"fmt"
	"time"
)

// KnowledgeDomain represents the top-level subject area of a knowledge base
type KnowledgeDomain string

const (
	KnowledgeDomainIT            KnowledgeDomain = "it"
	KnowledgeDomainLanguage      KnowledgeDomain = "language"
	KnowledgeDomainCertification KnowledgeDomain = "cert"
)

// KnowledgeBase represents a named, owned collection of documents and their
// derived chunks. It is the unit of search isolation: every query runs over
// exactly one knowledge base.
type KnowledgeBase struct {
	ID        string
	OwnerID   string
	Name      string
	Domain    KnowledgeDomain
	SubDomain string
	Dimension int // configured embedding vector dimension
	CreatedAt time.Time
}

// NewKnowledgeBase creates a new KnowledgeBase instance
func NewKnowledgeBase(
	id, ownerID, name string,
	kbDomain KnowledgeDomain,
	subDomain string,
	dimension int,
	createdAt time.Time,
) *KnowledgeBase {
	return &KnowledgeBase{
		ID:        id,
		OwnerID:   ownerID,
		Name:      name,
		Domain:    kbDomain,
		SubDomain: subDomain,
		Dimension: dimension,
		CreatedAt: createdAt,
	}
}

// ValidateKnowledgeBase validates a KnowledgeBase instance
func ValidateKnowledgeBase(kb *KnowledgeBase) error {
	if kb == nil {
		return NewDomainError(ErrCodeValidation, "knowledge base cannot be nil")
	}

	if kb.ID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge base ID is required")
	}

	if kb.OwnerID == "" {
		return NewDomainError(ErrCodeValidation, "knowledge base OwnerID is required")
	}

	if kb.Name == "" {
		return NewDomainError(ErrCodeValidation, "knowledge base Name is required")
	}

	if !isValidKnowledgeDomain(kb.Domain) {
		return NewDomainError(ErrCodeValidation, fmt.Sprintf("knowledge base Domain is invalid: %s", kb.Domain))
	}

	if kb.Dimension <= 0 {
		return NewDomainError(ErrCodeValidation, "knowledge base Dimension must be greater than 0")
	}

	return nil
}

// isValidKnowledgeDomain checks if a KnowledgeDomain is valid
func isValidKnowledgeDomain(d KnowledgeDomain) bool {
	switch d {
	case KnowledgeDomainIT, KnowledgeDomainLanguage, KnowledgeDomainCertification:
		return true
	}
	return false
}
