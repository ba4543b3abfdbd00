package domain

import (
	"fmt"
	"time"
)

// DocumentStatus represents where a document sits in the ingestion pipeline
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusParsing    DocumentStatus = "parsing"
	DocumentStatusChunking   DocumentStatus = "chunking"
	DocumentStatusEmbedding  DocumentStatus = "embedding"
	DocumentStatusExtracting DocumentStatus = "extracting"
	DocumentStatusIndexing   DocumentStatus = "indexing"
	DocumentStatusIndexed    DocumentStatus = "indexed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Document represents an uploaded file tracked through ingestion.
// Status transitions are the only mutation; rows are removed only by
// an explicit purge.
type Document struct {
	ID          string
	Filename    string
	MimeType    string
	SizeBytes   int64
	Status      DocumentStatus
	ErrorReason string
	ChunkCount  int
	UploadedAt  time.Time
	UpdatedAt   time.Time
}

// NewDocument creates a Document in the pending state.
func NewDocument(id, filename, mimeType string, sizeBytes int64, now time.Time) *Document {
	return &Document{
		ID:         id,
		Filename:   filename,
		MimeType:   mimeType,
		SizeBytes:  sizeBytes,
		Status:     DocumentStatusPending,
		UploadedAt: now,
		UpdatedAt:  now,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if d.Filename == "" {
		return fmt.Errorf("document Filename is required")
	}
	if d.SizeBytes < 0 {
		return fmt.Errorf("document SizeBytes cannot be negative")
	}
	if !isValidDocumentStatus(d.Status) {
		return fmt.Errorf("document Status is invalid: %s", d.Status)
	}
	return nil
}

func isValidDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusPending, DocumentStatusParsing, DocumentStatusChunking,
		DocumentStatusEmbedding, DocumentStatusExtracting, DocumentStatusIndexing,
		DocumentStatusIndexed, DocumentStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further pipeline work will happen.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusIndexed || s == DocumentStatusFailed
}
