package retriever

import (
	"context"
	"sort"
	"strings"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/keyword"
	"github.com/docquery-ai/docquery/internal/vectorindex"
)

// QueryEmbedder embeds a search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Config tunes result filtering.
type Config struct {
	// MinScore drops hits below this similarity. Zero disables the floor.
	MinScore float64
	// MaxPerDocument caps hits per source document so one long document
	// cannot crowd out the rest. Zero means no cap.
	MaxPerDocument int
	// DefaultTopK applies when a request does not say how many results it
	// wants.
	DefaultTopK int
}

// Retriever turns a text query into scored chunks. An empty result is a
// normal outcome, not an error.
type Retriever struct {
	embedder QueryEmbedder
	index    vectorindex.Index
	cfg      Config
}

// New builds a Retriever.
func New(embedder QueryEmbedder, index vectorindex.Index, cfg Config) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 5
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve embeds the query, searches the index, and re-ranks by the hybrid
// score: vector similarity plus a boost for hits whose stored keywords match
// query terms. The index is over-fetched so the boost, per-document cap, and
// score floor still leave topK results when enough qualify.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, documentIDs []string) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = r.cfg.DefaultTopK
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := r.index.Search(ctx, vec, topK*4, vectorindex.Filter{DocumentIDs: documentIDs})
	if err != nil {
		return nil, err
	}
	hits = boostKeywordMatches(hits, keyword.QueryTerms(query))

	perDoc := map[string]int{}
	results := make([]domain.RetrievalResult, 0, topK)
	for _, h := range hits {
		if r.cfg.MinScore > 0 && h.Score < r.cfg.MinScore {
			// Hits arrive score-descending, everything after is lower.
			break
		}
		if r.cfg.MaxPerDocument > 0 && perDoc[h.DocumentID] >= r.cfg.MaxPerDocument {
			continue
		}
		perDoc[h.DocumentID]++
		results = append(results, domain.RetrievalResult{
			ChunkID:    h.ID,
			DocumentID: h.DocumentID,
			Sequence:   h.Sequence,
			Score:      float32(h.Score),
			Text:       h.Text,
			Keywords:   h.Keywords,
		})
		if len(results) == topK {
			break
		}
	}
	return results, nil
}

const (
	exactKeywordBoost  = 0.1
	foldedKeywordBoost = 0.05
)

// boostKeywordMatches raises hit scores when query terms match the keywords
// stored with the chunk at index time, then re-sorts by the adjusted score.
// Exact matches count more than case-folded ones and the total stays capped
// at 1.0, so boosted scores remain comparable to the min-score floor.
func boostKeywordMatches(hits []vectorindex.Hit, terms []string) []vectorindex.Hit {
	if len(hits) == 0 || len(terms) == 0 {
		return hits
	}
	for i := range hits {
		var boost float64
		for _, kw := range hits[i].Keywords {
			for _, term := range terms {
				if kw == term {
					boost += exactKeywordBoost
				} else if strings.EqualFold(kw, term) {
					boost += foldedKeywordBoost
				}
			}
		}
		if boost == 0 {
			continue
		}
		hits[i].Score += boost
		if hits[i].Score > 1.0 {
			hits[i].Score = 1.0
		}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})
	return hits
}
