package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/storage"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, d *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errorReason string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit, offset int) ([]*domain.Document, error)
}

// JobRepositoryInterface defines the repository interface for ingestion job persistence
type JobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.IngestionJob) error
	GetActiveByDocument(ctx context.Context, documentID string) (*domain.IngestionJob, error)
	CancelByDocument(ctx context.Context, documentID string) error
}

// BlobStoreInterface defines the object storage operations the service needs
type BlobStoreInterface interface {
	PutObject(ctx context.Context, key, contentType string, data []byte) error
	DeleteObject(ctx context.Context, key string) error
	HeadObject(ctx context.Context, key string) (*storage.ObjectMetadata, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// DocumentStatusResult is a document plus the state of its active job, if
// any.
type DocumentStatusResult struct {
	Document *domain.Document
	Job      *domain.IngestionJob
}

// IngestService accepts uploads and manages the document lifecycle.
// Ingestion itself runs asynchronously; SubmitDocument returns as soon as
// the blob and the job row are durable.
type IngestService struct {
	docs     DocumentRepositoryInterface
	jobs     JobRepositoryInterface
	blobs    BlobStoreInterface
	index    vectorindex.Index
	maxBytes int64
	uuidGen  UUIDGenerator
}

// NewIngestService creates a new IngestService instance
func NewIngestService(
	docs DocumentRepositoryInterface,
	jobs JobRepositoryInterface,
	blobs BlobStoreInterface,
	index vectorindex.Index,
	maxBytes int64,
) *IngestService {
	return &IngestService{
		docs:     docs,
		jobs:     jobs,
		blobs:    blobs,
		index:    index,
		maxBytes: maxBytes,
		uuidGen:  &DefaultUUIDGenerator{},
	}
}

// NewIngestServiceWithUUIDGen creates an IngestService with a custom UUID generator (for testing)
func NewIngestServiceWithUUIDGen(
	docs DocumentRepositoryInterface,
	jobs JobRepositoryInterface,
	blobs BlobStoreInterface,
	index vectorindex.Index,
	maxBytes int64,
	uuidGen UUIDGenerator,
) *IngestService {
	s := NewIngestService(docs, jobs, blobs, index, maxBytes)
	s.uuidGen = uuidGen
	return s
}

// SubmitDocument stores the upload and enqueues ingestion. The returned
// document is in the pending state; poll GetDocumentStatus for progress.
func (s *IngestService) SubmitDocument(ctx context.Context, filename, contentType string, data []byte) (*domain.Document, error) {
	if filename == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "filename is required")
	}
	if len(data) == 0 {
		return nil, domain.ErrEmptyDocument
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, domain.ErrFileTooLarge
	}

	now := time.Now().UTC()
	doc := domain.NewDocument(s.uuidGen.NewString(), filename, contentType, int64(len(data)), now)
	if err := domain.ValidateDocument(doc); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	// Blob first: a document row without its bytes is useless, the
	// reverse is just an orphan object.
	if err := s.blobs.PutObject(ctx, doc.ID, contentType, data); err != nil {
		return nil, err
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		s.cleanupBlob(doc.ID)
		return nil, err
	}

	job := domain.NewIngestionJob(s.uuidGen.NewString(), doc.ID, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocumentStatus returns the document and its active job, if one is
// still pending or running.
func (s *IngestService) GetDocumentStatus(ctx context.Context, id string) (*DocumentStatusResult, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &DocumentStatusResult{Document: doc}
	job, err := s.jobs.GetActiveByDocument(ctx, id)
	if err == nil {
		result.Job = job
	} else if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, err
	}
	return result, nil
}

// ListDocuments returns documents newest first.
func (s *IngestService) ListDocuments(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	return s.docs.List(ctx, limit, offset)
}

// DeleteDocument removes a document everywhere: its active job is
// cancelled, its chunks leave the index, its blob is deleted, and the row
// goes last so a failure part-way leaves the document visible for another
// attempt.
func (s *IngestService) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.docs.GetByID(ctx, id); err != nil {
		return err
	}

	if err := s.jobs.CancelByDocument(ctx, id); err != nil {
		return err
	}
	if err := s.index.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := s.blobs.DeleteObject(ctx, id); err != nil {
		return err
	}
	return s.docs.Delete(ctx, id)
}

// ReindexDocument re-runs the full pipeline over the stored blob. The
// document must not already have a live job, and the blob must still be in
// storage; checking up front beats enqueuing a job that can only fail.
func (s *IngestService) ReindexDocument(ctx context.Context, id string) (*domain.IngestionJob, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.blobs.HeadObject(ctx, doc.ID); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeCorruptFile, "stored file is no longer available", err)
	}

	if _, err := s.jobs.GetActiveByDocument(ctx, id); err == nil {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "document is already being ingested")
	} else if !errors.Is(err, domain.ErrJobNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	job := domain.NewIngestionJob(s.uuidGen.NewString(), doc.ID, now)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusPending, ""); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *IngestService) cleanupBlob(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.blobs.DeleteObject(ctx, key); err != nil {
		log.Printf("ingest: cleaning up blob %s: %v", key, err)
	}
}
