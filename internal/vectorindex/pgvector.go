package vectorindex

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/docquery-ai/docquery/internal/domain"
)

// PgvectorIndex stores chunk vectors in the chunks table next to the rest
// of the document data, so a single Postgres serves both metadata and
// retrieval.
type PgvectorIndex struct {
	pool *pgxpool.Pool
}

// NewPgvectorIndex builds the Postgres-backed index.
func NewPgvectorIndex(pool *pgxpool.Pool) *PgvectorIndex {
	return &PgvectorIndex{pool: pool}
}

// Upsert writes entries keyed by chunk ID. Re-running an indexing stage
// overwrites rows in place instead of duplicating them.
func (x *PgvectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := x.pool.Begin(ctx)
	if err != nil {
		return storeErr(err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		_, err := tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, seq, content, keywords, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET
				content = EXCLUDED.content,
				keywords = EXCLUDED.keywords,
				embedding = EXCLUDED.embedding`,
			e.ID, e.DocumentID, e.Sequence, e.Text, e.Keywords, pgvector.NewVector(e.Vector),
		)
		if err != nil {
			return storeErr(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr(err)
	}
	return nil
}

// Search returns the topK nearest chunks by cosine similarity. Score is
// 1 - cosine distance, so identical vectors score 1.0. Ordering is total:
// equal scores fall back to document ID then sequence.
func (x *PgvectorIndex) Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		topK = 10
	}

	query := `
		SELECT id, document_id, seq, content, keywords,
		       1.0 - (embedding <=> $1) AS score
		FROM chunks`
	args := []any{pgvector.NewVector(vector)}
	if len(filter.DocumentIDs) > 0 {
		query += ` WHERE document_id = ANY($2)`
		args = append(args, filter.DocumentIDs)
	}
	query += `
		ORDER BY score DESC, document_id ASC, seq ASC
		LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, topK)

	rows, err := x.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr(err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, topK)
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.DocumentID, &h.Sequence, &h.Text, &h.Keywords, &h.Score); err != nil {
			return nil, storeErr(err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(err)
	}
	return hits, nil
}

// DeleteDocument removes every chunk belonging to a document.
func (x *PgvectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	_, err := x.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return storeErr(err)
	}
	return nil
}

// CountDocument reports how many chunks a document has in the index.
func (x *PgvectorIndex) CountDocument(ctx context.Context, documentID string) (int, error) {
	var count int
	err := x.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, storeErr(err)
	}
	return count, nil
}

var _ Index = (*PgvectorIndex)(nil)

func storeErr(err error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCodeVectorStoreUnavailable,
		"vector store operation failed", err)
}
