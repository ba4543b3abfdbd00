package answer

import (
	"context"
	"strings"
	"time"

	"github.com/docquery-ai/docquery/internal/domain"
	"github.com/docquery-ai/docquery/internal/llm"
)

// DefaultContextBudget bounds how many runes of retrieved text go into the
// prompt. Roughly a third of a small model's context window, leaving room
// for the question and the answer.
const DefaultContextBudget = 6000

// Generator produces grounded answers from retrieved chunks.
type Generator struct {
	client        llm.ChatClient
	model         string
	contextBudget int
}

// NewGenerator builds a Generator. model is recorded on answers for
// observability; budget <= 0 uses the default.
func NewGenerator(client llm.ChatClient, model string, contextBudget int) *Generator {
	if contextBudget <= 0 {
		contextBudget = DefaultContextBudget
	}
	return &Generator{client: client, model: model, contextBudget: contextBudget}
}

// Generate answers the query from the given retrieval results. Sources on
// the returned answer are exactly the results whose text entered the
// prompt, in citation order, so a [2] in the answer text refers to
// Sources[1]. No results means no grounding material and is reported as
// ErrNoRelevantContext rather than asking the model to guess.
func (g *Generator) Generate(ctx context.Context, query string, results []domain.RetrievalResult) (*domain.Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if len(results) == 0 {
		return nil, domain.ErrNoRelevantContext
	}

	prompt, included := buildPrompt(query, results, g.contextBudget)

	start := time.Now()
	text, err := g.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.NewDomainError(domain.ErrCodeGenerationUnavailable,
			"model returned an empty answer")
	}

	return &domain.Answer{
		Text:      text,
		Sources:   included,
		Model:     g.model,
		LatencyMS: time.Since(start).Milliseconds(),
	}, nil
}
