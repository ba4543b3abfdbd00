package keyword

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docquery-ai/docquery/internal/llm"
)

const llmSystemPrompt = "You extract keywords from documents. " +
	"Respond with a JSON array of strings only, no prose. " +
	"Keywords must appear in or directly describe the given text. " +
	"Keep keywords in the language of the text."

// maxLLMInputRunes bounds prompt size for long chunks; the opening of a
// chunk carries enough signal for keyword extraction.
const maxLLMInputRunes = 2000

// LLMExtractor asks a chat model for keywords. Highest quality of the three
// methods and the most expensive; failures degrade gracefully through Set.
type LLMExtractor struct {
	client llm.ChatClient
	topN   int
}

// NewLLMExtractor builds the LLM-backed extractor.
func NewLLMExtractor(client llm.ChatClient, topN int) *LLMExtractor {
	if topN <= 0 {
		topN = 10
	}
	return &LLMExtractor{client: client, topN: topN}
}

func (e *LLMExtractor) Name() string { return "llm" }

// Extract prompts the model and parses the JSON array it returns. Models
// sometimes wrap the array in code fences or prose, so parsing tolerates
// surrounding noise.
func (e *LLMExtractor) Extract(ctx context.Context, text string) ([]string, error) {
	runes := []rune(text)
	if len(runes) > maxLLMInputRunes {
		text = string(runes[:maxLLMInputRunes])
	}

	prompt := fmt.Sprintf("Extract at most %d keywords from the following text.\n\n%s", e.topN, text)
	raw, err := e.client.Complete(ctx, llmSystemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	keywords, err := parseKeywordArray(raw)
	if err != nil {
		return nil, err
	}
	if len(keywords) > e.topN {
		keywords = keywords[:e.topN]
	}
	return keywords, nil
}

func parseKeywordArray(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no JSON array in model output")
	}

	var keywords []string
	if err := json.Unmarshal([]byte(raw[start:end+1]), &keywords); err != nil {
		return nil, fmt.Errorf("parsing model output: %w", err)
	}

	out := keywords[:0]
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out, nil
}
