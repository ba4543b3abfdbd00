package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docquery-ai/docquery/internal/domain"
)

const jobColumns = `id, document_id, stage, status, attempts, last_error, next_attempt_at, created_at, updated_at`

// IngestionJobRepository persists the ingestion state machine. One active
// job exists per document at a time; workers claim jobs with row locks so
// two workers never process the same document concurrently.
type IngestionJobRepository struct {
	db dbtx
}

func NewIngestionJobRepository(pool *pgxpool.Pool) *IngestionJobRepository {
	return &IngestionJobRepository{db: pool}
}

func NewIngestionJobRepositoryWithTx(tx pgx.Tx) *IngestionJobRepository {
	return &IngestionJobRepository{db: tx}
}

func (r *IngestionJobRepository) Create(ctx context.Context, job *domain.IngestionJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO ingestion_jobs (`+jobColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.DocumentID, job.Stage, job.Status, job.Attempts,
		nullableString(job.LastError), job.NextAttemptAt, job.CreatedAt, job.UpdatedAt,
	)
	return err
}

func (r *IngestionJobRepository) GetByID(ctx context.Context, id string) (*domain.IngestionJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM ingestion_jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetActiveByDocument returns the pending or running job for a document, if
// one exists.
func (r *IngestionJobRepository) GetActiveByDocument(ctx context.Context, documentID string) (*domain.IngestionJob, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+jobColumns+`
		 FROM ingestion_jobs
		 WHERE document_id = $1 AND status IN ($2, $3)`,
		documentID, domain.JobStatusPending, domain.JobStatusRunning)
	return scanJob(row)
}

// ClaimNext atomically picks the oldest due pending job and marks it
// running. SKIP LOCKED lets concurrent workers claim different jobs without
// blocking each other. Returns ErrJobNotFound when nothing is due.
func (r *IngestionJobRepository) ClaimNext(ctx context.Context) (*domain.IngestionJob, error) {
	row := r.db.QueryRow(ctx,
		`WITH next AS (
			 SELECT id
			 FROM ingestion_jobs
			 WHERE status = $1 AND next_attempt_at <= now()
			 ORDER BY next_attempt_at ASC, created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT 1
		 )
		 UPDATE ingestion_jobs
		 SET status = $2, updated_at = now()
		 WHERE id = (SELECT id FROM next)
		 RETURNING `+jobColumns,
		domain.JobStatusPending, domain.JobStatusRunning)
	return scanJob(row)
}

// SetStage advances the persisted stage pointer so a retried job resumes
// from where it failed instead of the beginning.
func (r *IngestionJobRepository) SetStage(ctx context.Context, id string, stage domain.IngestionStage) error {
	return r.update(ctx, id,
		`UPDATE ingestion_jobs SET stage = $2, updated_at = now() WHERE id = $1`, stage)
}

// Complete marks a job finished.
func (r *IngestionJobRepository) Complete(ctx context.Context, id string) error {
	return r.update(ctx, id,
		`UPDATE ingestion_jobs SET status = $2, last_error = NULL, updated_at = now() WHERE id = $1`,
		domain.JobStatusCompleted)
}

// Fail marks a job permanently failed with the given reason.
func (r *IngestionJobRepository) Fail(ctx context.Context, id string, reason string) error {
	return r.update(ctx, id,
		`UPDATE ingestion_jobs SET status = $2, last_error = $3, updated_at = now() WHERE id = $1`,
		domain.JobStatusFailed, reason)
}

// Reschedule returns a running job to pending with an incremented attempt
// counter and a future due time.
func (r *IngestionJobRepository) Reschedule(ctx context.Context, id string, reason string, nextAttemptAt time.Time) error {
	return r.update(ctx, id,
		`UPDATE ingestion_jobs
		 SET status = $2, attempts = attempts + 1, last_error = $3, next_attempt_at = $4, updated_at = now()
		 WHERE id = $1`,
		domain.JobStatusPending, reason, nextAttemptAt)
}

// CancelByDocument cancels any pending or running jobs for a document. The
// running worker observes the cancellation at its next stage boundary.
func (r *IngestionJobRepository) CancelByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE ingestion_jobs
		 SET status = $2, updated_at = now()
		 WHERE document_id = $1 AND status IN ($3, $4)`,
		documentID, domain.JobStatusCancelled, domain.JobStatusPending, domain.JobStatusRunning)
	return err
}

// IsCancelled reports whether the job has been cancelled out from under a
// worker.
func (r *IngestionJobRepository) IsCancelled(ctx context.Context, id string) (bool, error) {
	var status domain.IngestionJobStatus
	err := r.db.QueryRow(ctx,
		`SELECT status FROM ingestion_jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrJobNotFound
		}
		return false, err
	}
	return status == domain.JobStatusCancelled, nil
}

func (r *IngestionJobRepository) update(ctx context.Context, id string, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	var lastError pgtype.Text
	err := row.Scan(&job.ID, &job.DocumentID, &job.Stage, &job.Status, &job.Attempts,
		&lastError, &job.NextAttemptAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	if lastError.Valid {
		job.LastError = lastError.String
	}
	return &job, nil
}
