package coherence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/llm"
)

const systemPrompt = `Rate coherence between existing context and new content.
Reply with only a JSON object: {"score":0.0-1.0,"reason":"<why>","updated_labels":["label1","label2"]}.`

// MaxContextChars caps how much of the parent context and new content is
// quoted in the LLM prompt, mirroring the extractor/merge evaluator's own
// prompt-size caps.
const MaxContextChars = 4000

// Checker is the coherence checker. A nil Provider (or LLMEnabled=false)
// always falls back to embedding similarity, never an error: the
// extractor/merge evaluator degrade the same way per spec §7.
type Checker struct {
	provider   llm.Provider
	embedder   embed.Backend
	llmEnabled bool
	logger     *slog.Logger
}

func New(provider llm.Provider, embedder embed.Backend, llmEnabled bool, logger *slog.Logger) *Checker {
	return &Checker{provider: provider, embedder: embedder, llmEnabled: llmEnabled, logger: logger}
}

// Check scores how well content coheres with parentContext, preferring the
// LLM and falling back to embedding cosine similarity when the LLM is
// disabled, unconfigured, or its reply fails to parse.
func (c *Checker) Check(ctx context.Context, parentContext, content string, currentLabels []string) Result {
	if !c.llmEnabled || c.provider == nil {
		return c.checkViaEmbedding(ctx, parentContext, content, currentLabels)
	}

	result, err := c.checkViaLLM(ctx, parentContext, content, currentLabels)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("coherence LLM check failed, falling back to embedding similarity", "error", err)
		}
		return c.checkViaEmbedding(ctx, parentContext, content, currentLabels)
	}
	return result
}

func (c *Checker) checkViaEmbedding(ctx context.Context, parentContext, content string, currentLabels []string) Result {
	ctxEmb, err1 := c.embedder.Embed(ctx, parentContext)
	cntEmb, err2 := c.embedder.Embed(ctx, content)
	score := 0.0
	if err1 == nil && err2 == nil {
		score = embed.Cosine(ctxEmb, cntEmb)
	}
	return Result{
		Score:         score,
		Reason:        "embedding similarity (LLM fallback)",
		UpdatedLabels: currentLabels,
	}
}

func (c *Checker) checkViaLLM(ctx context.Context, parentContext, content string, currentLabels []string) (Result, error) {
	prompt := fmt.Sprintf(
		"Current labels: %v\n\nContext:\n%s\n\nNew content:\n%s",
		currentLabels, truncate(parentContext, MaxContextChars), truncate(content, MaxContextChars),
	)

	raw, err := c.provider.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return Result{}, fmt.Errorf("coherence: llm call failed: %w", err)
	}

	var result Result
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return Result{}, fmt.Errorf("coherence: unparseable reply: %w", err)
	}
	if result.UpdatedLabels == nil {
		result.UpdatedLabels = currentLabels
	}
	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return raw[start : end+1]
}
