package ocr

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docquery-ai/docquery/internal/domain"
)

const visionPrompt = "Transcribe all text visible in this document exactly as written. " +
	"Preserve the reading order. Output only the transcribed text, nothing else."

// VisionEngine performs OCR through a multimodal chat endpoint
// (OpenAI-compatible), sending the page as an inline image.
type VisionEngine struct {
	client *openai.Client
	model  string
}

// VisionConfig configures the vision OCR backend.
type VisionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
}

func NewVisionEngine(cfg VisionConfig) *VisionEngine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &VisionEngine{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// ExtractText sends the document bytes as a data URL image part and returns
// the model's transcription.
func (e *VisionEngine) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "image/png"
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: visionPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		Temperature: 0,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", domain.NewDomainErrorWithCause(domain.ErrCodeParseTimeout, "vision OCR timed out", ctx.Err())
		}
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeOCRUnavailable, "vision OCR request failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
