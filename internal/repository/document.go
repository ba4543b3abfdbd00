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

// DocumentRepository persists document metadata and ingestion status.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, filename, mime_type, size_bytes, status, error_reason, chunk_count, uploaded_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.Filename, d.MimeType, d.SizeBytes, d.Status, nullableString(d.ErrorReason), d.ChunkCount, d.UploadedAt, d.UpdatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var errorReason pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, filename, mime_type, size_bytes, status, error_reason, chunk_count, uploaded_at, updated_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Filename, &d.MimeType, &d.SizeBytes, &d.Status, &errorReason, &d.ChunkCount, &d.UploadedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if errorReason.Valid {
		d.ErrorReason = errorReason.String
	}
	return &d, nil
}

// UpdateStatus moves a document through the ingestion lifecycle. The error
// reason is cleared on every transition except into failed.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errorReason string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $2, error_reason = $3, updated_at = $4 WHERE id = $1`,
		id, status, nullableString(errorReason), time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) SetChunkCount(ctx context.Context, id string, count int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET chunk_count = $2, updated_at = $3 WHERE id = $1`,
		id, count, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// List returns documents newest first.
func (r *DocumentRepository) List(ctx context.Context, limit, offset int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, filename, mime_type, size_bytes, status, error_reason, chunk_count, uploaded_at, updated_at
		 FROM documents
		 ORDER BY uploaded_at DESC, id ASC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		var errorReason pgtype.Text
		if err := rows.Scan(&d.ID, &d.Filename, &d.MimeType, &d.SizeBytes, &d.Status, &errorReason, &d.ChunkCount, &d.UploadedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		if errorReason.Valid {
			d.ErrorReason = errorReason.String
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
