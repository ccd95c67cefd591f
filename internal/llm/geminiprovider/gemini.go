// Package geminiprovider implements llm.Provider against Google's Gemini
// API, grounded on deepnoodle-ai-dive's llm/providers/google package
// (google.golang.org/genai client, API key sourced from GEMINI_API_KEY).
package geminiprovider

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/rpggio/memengine/internal/llm"
)

const DefaultModel = "gemini-1.5-flash"

type Provider struct {
	client *genai.Client
	model  string
}

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

func New(ctx context.Context, apiKey string, opts ...Option) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	p := &Provider{client: client, model: DefaultModel}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini completion: empty response")
	}
	return text, nil
}
