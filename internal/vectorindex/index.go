package vectorindex

import "context"

// Entry is one indexed chunk with its vector and retrieval payload.
type Entry struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	Keywords   []string
	Vector     []float32
}

// Hit is one search result, highest score first.
type Hit struct {
	ID         string
	DocumentID string
	Sequence   int
	Text       string
	Keywords   []string
	Score      float64
}

// Filter restricts a search. Zero value means no restriction.
type Filter struct {
	DocumentIDs []string
}

// Index is a vector store for chunk embeddings. Implementations must make
// Upsert idempotent on entry ID and order Search results by score
// descending with ties broken by document ID then sequence ascending.
type Index interface {
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]Hit, error)
	DeleteDocument(ctx context.Context, documentID string) error
	CountDocument(ctx context.Context, documentID string) (int, error)
}
