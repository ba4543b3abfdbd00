package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/ollama/ollama/api"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaClient embeds through a local Ollama server.
type OllamaClient struct {
	client *ollama.Client
	model  string
}

// NewOllamaClient builds an Ollama-backed client. baseURL defaults to the
// standard local port when empty.
func NewOllamaClient(baseURL, model string) (*OllamaClient, error) {
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}
	hc := &http.Client{Timeout: 120 * time.Second}
	return &OllamaClient{
		client: ollama.NewClient(u, hc),
		model:  model,
	}, nil
}

// Embed requests one embedding per input using Ollama's batch endpoint.
func (c *OllamaClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	resp, err := c.client.Embed(ctx, &ollama.EmbedRequest{
		Model: c.model,
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, errors.New("ollama returned wrong number of embeddings")
	}
	return resp.Embeddings, nil
}
