package retriever

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

type fixedEmbedder struct {
	err error
}

func (f *fixedEmbedder) EmbedQuery(context.Context, string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

type scriptedIndex struct {
	hits      []vectorindex.Hit
	err       error
	lastTopK  int
	lastFilter vectorindex.Filter
}

func (s *scriptedIndex) Search(_ context.Context, _ []float32, topK int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	s.lastTopK = topK
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

func (s *scriptedIndex) Upsert(context.Context, []vectorindex.Entry) error { return nil }
func (s *scriptedIndex) DeleteDocument(context.Context, string) error { return nil }
func (s *scriptedIndex) CountDocument(context.Context, string) (int, error) { return 0, nil }

func hit(doc string, seq int, score float64) vectorindex.Hit {
	return vectorindex.Hit{
		ID:         doc + "-chunk",
		DocumentID: doc,
		Sequence:   seq,
		Text:       "본문",
		Score:      score,
	}
}

func TestRetriever_EmptyQueryRejected(t *testing.T) {
	r := New(&fixedEmbedder{}, &scriptedIndex{}, Config{})

	_, err := r.Retrieve(context.Background(), "   ", 5, nil)
	assert.True(t, errors.Is(err, domain.ErrEmptyQuery))
}

func TestRetriever_MinScoreFloor(t *testing.T) {
	idx := &scriptedIndex{hits: []vectorindex.Hit{
		hit("a", 0, 0.9), hit("b", 0, 0.5), hit("c", 0, 0.29), hit("d", 0, 0.1),
	}}
	r := New(&fixedEmbedder{}, idx, Config{MinScore: 0.3})

	results, err := r.Retrieve(context.Background(), "수수료", 5, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].DocumentID)
	assert.Equal(t, "b", results[1].DocumentID)
}

func TestRetriever_NoResultsIsNotAnError(t *testing.T) {
	r := New(&fixedEmbedder{}, &scriptedIndex{}, Config{MinScore: 0.3})

	results, err := r.Retrieve(context.Background(), "관련 없는 질문", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetriever_MaxPerDocumentCap(t *testing.T) {
	idx := &scriptedIndex{hits: []vectorindex.Hit{
		hit("a", 0, 0.9), hit("a", 1, 0.8), hit("a", 2, 0.7), hit("b", 0, 0.6),
	}}
	r := New(&fixedEmbedder{}, idx, Config{MaxPerDocument: 2})

	results, err := r.Retrieve(context.Background(), "질문", 4, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].DocumentID)
	assert.Equal(t, "a", results[1].DocumentID)
	assert.Equal(t, "b", results[2].DocumentID)
}

func TestRetriever_Overfetches(t *testing.T) {
	idx := &scriptedIndex{}
	r := New(&fixedEmbedder{}, idx, Config{MinScore: 0.3})

	_, err := r.Retrieve(context.Background(), "질문", 5, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, idx.lastTopK)
}

func TestRetriever_KeywordBoostReranks(t *testing.T) {
	vectorOnly := hit("semantic", 0, 0.80)
	matched := hit("keyworded", 0, 0.75)
	matched.Keywords = []string{"환불", "정책"}
	idx := &scriptedIndex{hits: []vectorindex.Hit{vectorOnly, matched}}
	r := New(&fixedEmbedder{}, idx, Config{})

	// Both query terms match stored keywords exactly, so the second hit
	// overtakes the one with the higher raw similarity.
	results, err := r.Retrieve(context.Background(), "환불 정책", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "keyworded", results[0].DocumentID)
	assert.InDelta(t, 0.95, results[0].Score, 1e-6)
	assert.Equal(t, "semantic", results[1].DocumentID)
	assert.InDelta(t, 0.80, results[1].Score, 1e-6)
}

func TestRetriever_KeywordBoostCaseFoldedAndCapped(t *testing.T) {
	folded := hit("folded", 0, 0.5)
	folded.Keywords = []string{"REFUND"}
	capped := hit("capped", 0, 0.98)
	capped.Keywords = []string{"refund", "policy"}
	idx := &scriptedIndex{hits: []vectorindex.Hit{capped, folded}}
	r := New(&fixedEmbedder{}, idx, Config{})

	results, err := r.Retrieve(context.Background(), "refund policy", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.InDelta(t, 0.55, results[1].Score, 1e-6)
}

func TestRetriever_NoKeywordsLeavesScoresAlone(t *testing.T) {
	idx := &scriptedIndex{hits: []vectorindex.Hit{hit("a", 0, 0.7)}}
	r := New(&fixedEmbedder{}, idx, Config{})

	results, err := r.Retrieve(context.Background(), "질문", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 0.7, results[0].Score, 1e-6)
}

func TestRetriever_TopKLimit(t *testing.T) {
	idx := &scriptedIndex{hits: []vectorindex.Hit{
		hit("a", 0, 0.9), hit("b", 0, 0.8), hit("c", 0, 0.7),
	}}
	r := New(&fixedEmbedder{}, idx, Config{})

	results, err := r.Retrieve(context.Background(), "질문", 2, nil)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetriever_PassesDocumentFilter(t *testing.T) {
	idx := &scriptedIndex{}
	r := New(&fixedEmbedder{}, idx, Config{})

	_, err := r.Retrieve(context.Background(), "질문", 5, []string{"doc-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1"}, idx.lastFilter.DocumentIDs)
}

func TestRetriever_EmbedderErrorPropagates(t *testing.T) {
	r := New(&fixedEmbedder{err: domain.ErrEmbeddingUnavailable}, &scriptedIndex{}, Config{})

	_, err := r.Retrieve(context.Background(), "질문", 5, nil)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingUnavailable))
}
