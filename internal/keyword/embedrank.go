package keyword

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// TextEmbedder is the slice of the embedding layer this method needs.
type TextEmbedder interface {
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedRankExtractor scores candidate phrases by cosine similarity against
// the embedding of the whole text. Candidates closest to the text's meaning
// win. Costs one embedding call per text plus one per candidate batch.
type EmbedRankExtractor struct {
	embedder      TextEmbedder
	topN          int
	maxCandidates int
}

// NewEmbedRankExtractor builds the embedding-similarity extractor.
func NewEmbedRankExtractor(embedder TextEmbedder, topN int) *EmbedRankExtractor {
	if topN <= 0 {
		topN = 10
	}
	return &EmbedRankExtractor{embedder: embedder, topN: topN, maxCandidates: 48}
}

func (e *EmbedRankExtractor) Name() string { return "embedding" }

// Extract picks candidate unigrams and bigrams, embeds them alongside the
// full text, and returns the candidates most similar to the text vector.
func (e *EmbedRankExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	candidates := candidatePhrases(text, e.maxCandidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	inputs := append([]string{text}, candidates...)
	vecs, err := e.embedder.EmbedPassages(ctx, inputs)
	if err != nil {
		return nil, fmt.Errorf("embedding candidates: %w", err)
	}
	if len(vecs) != len(inputs) {
		return nil, fmt.Errorf("expected %d vectors, got %d", len(inputs), len(vecs))
	}

	docVec := vecs[0]
	type scored struct {
		phrase string
		score  float32
		idx    int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{phrase: c, score: dot(docVec, vecs[i+1]), idx: i}
	}
	sort.Slice(ranked, func(a, b int) bool {
		if ranked[a].score != ranked[b].score {
			return ranked[a].score > ranked[b].score
		}
		return ranked[a].idx < ranked[b].idx
	})

	n := e.topN
	if n > len(ranked) {
		n = len(ranked)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].phrase
	}
	return out, nil
}

// candidatePhrases collects distinct content-word unigrams and adjacent
// bigrams, in order of first appearance, capped at limit.
func candidatePhrases(text string, limit int) []string {
	tokens := tokenize(text)

	var (
		out  []string
		seen = map[string]struct{}{}
	)
	add := func(phrase string) bool {
		key := strings.ToLower(phrase)
		if _, ok := seen[key]; ok {
			return len(out) < limit
		}
		seen[key] = struct{}{}
		out = append(out, phrase)
		return len(out) < limit
	}

	normed := make([]string, len(tokens))
	for i, tok := range tokens {
		normed[i] = normalizeToken(tok)
	}
	for i, n := range normed {
		if n == "" {
			continue
		}
		if !add(n) {
			return out
		}
		if i+1 < len(normed) && normed[i+1] != "" {
			if !add(n + " " + normed[i+1]) {
				return out
			}
		}
	}
	return out
}

// dot works because embedder output is unit-normalized, making the dot
// product equal to cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
