package embed

import (
	"context"
	"math"
	"strings"

	"github.com/docquery-ai/docquery/internal/domain"
)

const (
	// DefaultDimensions matches the multilingual e5-large family this
	// service is tuned for.
	DefaultDimensions = 1024
	// DefaultBatchSize caps how many inputs go to the backend per call.
	DefaultBatchSize = 32
)

// Client is the backend-specific embedding call. Implementations return one
// vector per input, in input order.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Embedder turns chunk and query text into unit-length vectors. Batching is
// internal: callers pass any number of texts and get exactly one vector per
// text back. Models in the e5 family receive the instruction prefixes they
// were trained with.
type Embedder struct {
	client    Client
	model     string
	dim       int
	batchSize int
	prefixed  bool
}

// Config configures an Embedder. Zero values fall back to defaults.
type Config struct {
	Model      string
	Dimensions int
	BatchSize  int
}

// NewEmbedder wraps a backend client. The e5 prefix convention is enabled
// automatically when the model name indicates an e5 checkpoint.
func NewEmbedder(client Client, cfg Config) *Embedder {
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = DefaultDimensions
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	return &Embedder{
		client:    client,
		model:     cfg.Model,
		dim:       dim,
		batchSize: batch,
		prefixed:  strings.Contains(strings.ToLower(cfg.Model), "e5"),
	}
}

// Dimensions reports the vector width every returned embedding has.
func (e *Embedder) Dimensions() int { return e.dim }

// EmbedPassages embeds document chunks. The result has one vector per input
// text, in input order, regardless of how many backend calls were needed.
func (e *Embedder) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedAll(ctx, texts, "passage: ")
}

// EmbedQuery embeds a search query.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := e.embedAll(ctx, []string{query}, "query: ")
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *Embedder) embedAll(ctx context.Context, texts []string, prefix string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := texts
	if e.prefixed {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = prefix + t
		}
	}

	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += e.batchSize {
		end := start + e.batchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		vecs, err := e.client.Embed(ctx, inputs[start:end])
		if err != nil {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingUnavailable,
				"embedding backend call failed", err)
		}
		if len(vecs) != end-start {
			return nil, domain.NewDomainError(domain.ErrCodeEmbeddingUnavailable,
				"embedding backend returned wrong number of vectors")
		}

		for _, v := range vecs {
			if len(v) != e.dim {
				return nil, domain.ErrEmbeddingDimWrong
			}
			out = append(out, normalize(v))
		}
	}
	return out, nil
}

// normalize scales v to unit length so cosine similarity reduces to a dot
// product. Zero vectors pass through unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := 1 / math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) * inv)
	}
	return out
}
