package optimizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var ErrEmptyGeneration = errors.New("generator returned no text")

type GenerateRequest struct {
	Prompt          string
	MaxOutputTokens int32
	Temperature     float32
}

// Generator is a generative-text completion service.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

type GeminiGenerator struct {
	client *genai.Client
	model  string
}

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyGeneration
	}

	return text, nil
}
