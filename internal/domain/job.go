package domain

import (
	"fmt"
	"time"
)

// IngestionStage identifies the next pipeline stage a job has to run.
// A resumed job re-executes only stages at or after its recorded stage.
type IngestionStage string

const (
	StageParse   IngestionStage = "parse"
	StageChunk   IngestionStage = "chunk"
	StageEmbed   IngestionStage = "embed"
	StageExtract IngestionStage = "extract"
	StageIndex   IngestionStage = "index"
)

// IngestionJobStatus represents the lifecycle of an ingestion job
type IngestionJobStatus string

const (
	JobStatusPending   IngestionJobStatus = "pending"
	JobStatusRunning   IngestionJobStatus = "running"
	JobStatusCompleted IngestionJobStatus = "completed"
	JobStatusFailed    IngestionJobStatus = "failed"
	JobStatusCancelled IngestionJobStatus = "cancelled"
)

// IngestionJob is the durable unit of async work that turns one uploaded
// document into indexed chunks. At most one non-terminal job exists per
// document.
type IngestionJob struct {
	ID            string
	DocumentID    string
	Stage         IngestionStage
	Status        IngestionJobStatus
	Attempts      int32
	LastError     string
	NextAttemptAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewIngestionJob creates a pending job starting at the parse stage.
func NewIngestionJob(id, documentID string, now time.Time) *IngestionJob {
	return &IngestionJob{
		ID:            id,
		DocumentID:    documentID,
		Stage:         StageParse,
		Status:        JobStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ValidateIngestionJob validates an IngestionJob instance
func ValidateIngestionJob(j *IngestionJob) error {
	if j == nil {
		return fmt.Errorf("ingestion job cannot be nil")
	}
	if j.ID == "" {
		return fmt.Errorf("ingestion job ID is required")
	}
	if j.DocumentID == "" {
		return fmt.Errorf("ingestion job DocumentID is required")
	}
	if !isValidStage(j.Stage) {
		return fmt.Errorf("ingestion job Stage is invalid: %s", j.Stage)
	}
	if !isValidJobStatus(j.Status) {
		return fmt.Errorf("ingestion job Status is invalid: %s", j.Status)
	}
	if j.Attempts < 0 {
		return fmt.Errorf("ingestion job Attempts cannot be negative")
	}
	return nil
}

func isValidStage(s IngestionStage) bool {
	switch s {
	case StageParse, StageChunk, StageEmbed, StageExtract, StageIndex:
		return true
	}
	return false
}

func isValidJobStatus(s IngestionJobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusRunning, JobStatusCompleted,
		JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// StageOrder returns the pipeline position of a stage, parse first.
func StageOrder(s IngestionStage) int {
	switch s {
	case StageParse:
		return 0
	case StageChunk:
		return 1
	case StageEmbed:
		return 2
	case StageExtract:
		return 3
	case StageIndex:
		return 4
	default:
		return -1
	}
}

// DocumentStatusForStage maps a running stage to the document status shown
// to callers while that stage executes.
func DocumentStatusForStage(s IngestionStage) DocumentStatus {
	switch s {
	case StageParse:
		return DocumentStatusParsing
	case StageChunk:
		return DocumentStatusChunking
	case StageEmbed:
		return DocumentStatusEmbedding
	case StageExtract:
		return DocumentStatusExtracting
	case StageIndex:
		return DocumentStatusIndexing
	default:
		return DocumentStatusPending
	}
}
