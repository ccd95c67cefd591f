// Package openaiprovider implements llm.Provider against the OpenAI chat
// completions API using the official SDK, grounded on the provider shape
// shown throughout deepnoodle-ai-dive's providers/openai package (an
// apiKey/model/client struct built with functional options).
package openaiprovider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/rpggio/memengine/internal/llm"
)

const DefaultModel = "gpt-4o-mini"

type Provider struct {
	client openai.Client
	model  string
}

type Option func(*Provider)

func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  DefaultModel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ llm.Provider = (*Provider)(nil)

func (p *Provider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
