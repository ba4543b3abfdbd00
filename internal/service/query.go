package service

import (
	"context"

	"github.com/docquery-ai/docquery/internal/domain"
)

// RetrieverInterface defines the retrieval operation the query service needs
type RetrieverInterface interface {
	Retrieve(ctx context.Context, query string, topK int, documentIDs []string) ([]domain.RetrievalResult, error)
}

// GeneratorInterface defines the answer generation operation
type GeneratorInterface interface {
	Generate(ctx context.Context, query string, results []domain.RetrievalResult) (*domain.Answer, error)
}

// QueryService answers searches and questions over the indexed corpus.
type QueryService struct {
	retriever RetrieverInterface
	generator GeneratorInterface
}

// NewQueryService creates a new QueryService instance
func NewQueryService(retriever RetrieverInterface, generator GeneratorInterface) *QueryService {
	return &QueryService{retriever: retriever, generator: generator}
}

// Search returns scored chunks for a query. An empty slice means nothing
// relevant is indexed; that is a valid response, not an error.
func (s *QueryService) Search(ctx context.Context, query string, topK int, documentIDs []string) ([]domain.RetrievalResult, error) {
	return s.retriever.Retrieve(ctx, query, topK, documentIDs)
}

// Answer retrieves context for the query and generates a grounded answer.
// A query with no relevant indexed material fails with
// ErrNoRelevantContext, which callers must distinguish from a generation
// backend outage.
func (s *QueryService) Answer(ctx context.Context, query string, topK int, documentIDs []string) (*domain.Answer, error) {
	results, err := s.retriever.Retrieve(ctx, query, topK, documentIDs)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, domain.ErrNoRelevantContext
	}
	return s.generator.Generate(ctx, query, results)
}
