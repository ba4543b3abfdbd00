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

// Is matches two DomainErrors by code, so wrapped copies of a sentinel
// still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
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
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeInternalError = "INTERNAL_ERROR"

	// Terminal ingestion errors: retrying cannot help, the input must change.
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeCorruptFile       = "CORRUPT_FILE"
	ErrCodeEmptyDocument     = "EMPTY_DOCUMENT"

	// Transient errors: retried with backoff up to a bounded attempt count.
	ErrCodeParseTimeout           = "PARSE_TIMEOUT"
	ErrCodeOCRUnavailable         = "OCR_SERVICE_UNAVAILABLE"
	ErrCodeEmbeddingUnavailable   = "EMBEDDING_SERVICE_UNAVAILABLE"
	ErrCodeVectorStoreUnavailable = "VECTOR_STORE_UNAVAILABLE"
	ErrCodeGenerationUnavailable  = "GENERATION_UNAVAILABLE"

	// ErrCodeNoContext distinguishes "nothing relevant indexed" from a
	// generation backend failure.
	ErrCodeNoContext = "NO_RELEVANT_CONTEXT"
)

// Parsing errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeUnsupportedFormat, "unsupported file format")
	ErrCorruptFile       = NewDomainError(ErrCodeCorruptFile, "file is corrupt or unreadable")
	ErrEmptyDocument     = NewDomainError(ErrCodeEmptyDocument, "document contains no extractable text")
	ErrParseTimeout      = NewDomainError(ErrCodeParseTimeout, "document parsing timed out")
)

// Backend availability errors
var (
	ErrOCRUnavailable         = NewDomainError(ErrCodeOCRUnavailable, "OCR backend unavailable")
	ErrEmbeddingUnavailable   = NewDomainError(ErrCodeEmbeddingUnavailable, "embedding backend unavailable")
	ErrVectorStoreUnavailable = NewDomainError(ErrCodeVectorStoreUnavailable, "vector store unavailable")
	ErrGenerationUnavailable  = NewDomainError(ErrCodeGenerationUnavailable, "answer generation unavailable")
)

// ErrNoRelevantContext means retrieval found nothing above the score floor,
// so there is no grounding material to answer from.
var ErrNoRelevantContext = NewDomainError(ErrCodeNoContext, "no relevant context found for query")

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrJobNotFound      = NewDomainError(ErrCodeNotFound, "ingestion job not found")
)

// Validation errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query cannot be empty")
	ErrInvalidStatus     = NewDomainError(ErrCodeValidation, "invalid document status")
	ErrInvalidStage      = NewDomainError(ErrCodeValidation, "invalid ingestion stage")
	ErrEmbeddingDimWrong = NewDomainError(ErrCodeValidation, "embedding has wrong dimensions")
	ErrFileTooLarge      = NewDomainError(ErrCodeValidation, "file exceeds maximum upload size")
)

// IsRetryable reports whether the ingestion pipeline should retry a stage
// that failed with err. Terminal errors (bad input) are never retried.
func IsRetryable(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		// Unknown failures are treated as transient so a flaky dependency
		// does not permanently fail a document.
		return true
	}
	switch de.Code {
	case ErrCodeParseTimeout,
		ErrCodeOCRUnavailable,
		ErrCodeEmbeddingUnavailable,
		ErrCodeVectorStoreUnavailable,
		ErrCodeGenerationUnavailable,
		ErrCodeInternalError:
		return true
	default:
		return false
	}
}
