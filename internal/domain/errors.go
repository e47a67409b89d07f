package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is treats two DomainErrors with the same code and message as equal, so
// sentinel errors survive wrapping with extra context.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if !errors.As(target, &de) {
		return false
	}
	return e.Code == de.Code && e.Message == de.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeProvider   = "PROVIDER_ERROR"
	ErrCodeStorage    = "STORAGE_ERROR"
	ErrCodeCache      = "CACHE_ERROR"
)

// Validation errors
var (
	ErrDimensionMismatch = NewDomainError(ErrCodeValidation, "embedding dimension does not match knowledge base dimension")
	ErrEmptyText         = NewDomainError(ErrCodeValidation, "text cannot be empty")
)

// Not found errors
var (
	ErrKnowledgeBaseNotFound = NewDomainError(ErrCodeNotFound, "knowledge base not found")
	ErrDocumentNotFound      = NewDomainError(ErrCodeNotFound, "document not found")
	ErrIngestJobNotFound     = NewDomainError(ErrCodeNotFound, "ingest job not found")
)

// Provider errors
var (
	ErrNoEmbeddingProvider = NewDomainError(ErrCodeProvider, "no embedding provider configured")
)

// hasCode reports whether err or anything it wraps is a DomainError with the
// given code.
func hasCode(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsNotFound reports whether err is a not-found error
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsProvider reports whether err is an embedding provider error
func IsProvider(err error) bool { return hasCode(err, ErrCodeProvider) }

// IsStorage reports whether err is a storage error
func IsStorage(err error) bool { return hasCode(err, ErrCodeStorage) }

// StorageError wraps a persistence failure so callers can distinguish an
// unreachable store from an empty result set.
func StorageError(op string, err error) error {
	return NewDomainErrorWithCause(ErrCodeStorage, op, err)
}

// ProviderError wraps an embedding capability failure.
func ProviderError(op string, err error) error {
	return NewDomainErrorWithCause(ErrCodeProvider, op, err)
}
