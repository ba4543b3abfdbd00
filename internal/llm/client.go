package llm

import (
	"context"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docquery-ai/docquery/internal/domain"
)

const defaultTimeout = 60 * time.Second

// ChatClient produces a completion for a system/user prompt pair.
type ChatClient interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Client calls an OpenAI-compatible chat completions endpoint. Local
// inference servers and hosted APIs both work through the same config.
type Client struct {
	api     *openai.Client
	model   string
	timeout time.Duration
}

// Config configures the chat client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewClient builds a chat client for the configured endpoint.
func NewClient(cfg Config) *Client {
	c := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		api:     openai.NewClientWithConfig(c),
		model:   cfg.Model,
		timeout: timeout,
	}
}

// Complete sends the prompt and returns the first choice's text. Every call
// runs under a bounded deadline so a stalled backend cannot hang a request.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeGenerationUnavailable,
			"chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", domain.NewDomainError(domain.ErrCodeGenerationUnavailable,
			"chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
