// Package genaiembed implements embed.Backend against Google's text
// embedding model, grounded on deepnoodle-ai-dive's llm/providers/google/
// embedding package (google.golang.org/genai client, one input per
// EmbedContent call, RETRIEVAL_DOCUMENT task type).
package genaiembed

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/rpggio/memengine/internal/embed"
)

const (
	DefaultModel      = "text-embedding-004"
	DefaultTaskType   = "RETRIEVAL_DOCUMENT"
	DefaultDimensions = 768
)

type Backend struct {
	client     *genai.Client
	model      string
	taskType   string
	dimensions int
}

type Option func(*Backend)

func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

func New(ctx context.Context, apiKey string, opts ...Option) (*Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	b := &Backend{
		client:     client,
		model:      DefaultModel,
		taskType:   DefaultTaskType,
		dimensions: DefaultDimensions,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

var _ embed.Backend = (*Backend)(nil)

func (b *Backend) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := &genai.EmbedContentConfig{TaskType: b.taskType}
	resp, err := b.client.Models.EmbedContent(ctx, b.model, genai.Text(text), cfg)
	if err != nil {
		return nil, fmt.Errorf("genai embed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("genai embed: empty response")
	}
	return resp.Embeddings[0].Values, nil
}

func (b *Backend) Dimensions() int { return b.dimensions }
