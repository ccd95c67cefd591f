package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/extract"
	"github.com/rpggio/memengine/internal/llm"
	"github.com/rpggio/memengine/internal/manager"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository the evaluator needs.
type ThreadRepository interface {
	GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error)
}

// MessageRepository is the subset of store.MessageRepository the evaluator needs.
type MessageRepository interface {
	ListByThread(ctx context.Context, threadID string) ([]memory.ThreadMessage, error)
}

// BridgeRepository is the subset of store.BridgeRepository the evaluator needs.
type BridgeRepository interface {
	Get(ctx context.Context, id string) (*memory.Bridge, error)
	Update(ctx context.Context, b *memory.Bridge) error
}

// Executor performs the atomic 6-step merge transaction, implemented by
// internal/store against the project database.
type Executor interface {
	Execute(ctx context.Context, survivor *memory.Thread, absorbedID string, newEmbedding []float32) error
}

// Evaluator is the merge evaluator.
type Evaluator struct {
	threads  ThreadRepository
	messages MessageRepository
	bridges  BridgeRepository
	executor Executor
	provider llm.Provider
	embedder embed.Backend
	logger   *slog.Logger
}

func New(threads ThreadRepository, messages MessageRepository, bridges BridgeRepository, executor Executor, provider llm.Provider, embedder embed.Backend, logger *slog.Logger) *Evaluator {
	return &Evaluator{threads: threads, messages: messages, bridges: bridges, executor: executor, provider: provider, embedder: embedder, logger: logger}
}

// Submit implements gossip.MergeCandidateSink: evaluates the bridge's
// endpoints for a merge.
func (e *Evaluator) Submit(ctx context.Context, bridgeID string) error {
	return e.Evaluate(ctx, bridgeID)
}

// Evaluate runs the full merge-or-reject flow for one candidate bridge.
func (e *Evaluator) Evaluate(ctx context.Context, bridgeID string) error {
	bridge, err := e.bridges.Get(ctx, bridgeID)
	if err != nil {
		return fmt.Errorf("merge: get candidate bridge: %w", err)
	}

	a, _, err := e.threads.GetWithTick(ctx, bridge.SourceID)
	if err != nil {
		return fmt.Errorf("merge: get thread A: %w", err)
	}
	b, _, err := e.threads.GetWithTick(ctx, bridge.TargetID)
	if err != nil {
		return fmt.Errorf("merge: get thread B: %w", err)
	}

	_, overlapRatio, _ := overlapScore(a.Concepts, b.Concepts)
	if overlapRatio < AutoBand {
		return nil
	}

	decision, err := e.decide(ctx, a, b)
	if err != nil {
		return err
	}

	if decision.Decision != "merge" {
		reason := decision.Reason
		if reason == "" {
			reason = "llm_reject_or_unavailable"
		}
		ApplyRejectPenalty(bridge, reason)
		return e.bridges.Update(ctx, bridge)
	}

	return e.apply(ctx, a, b, decision)
}

// ForceMerge runs the LLM arbitration and consolidation between two threads
// directly, bypassing the overlap_score >= AutoBand gate that Evaluate
// applies to gossip-discovered candidates — the manual operator override
// path. A reject decision from the LLM is honored (forcing doesn't force
// a merge against the arbiter's judgment, only past the auto-band filter).
func (e *Evaluator) ForceMerge(ctx context.Context, threadAID, threadBID string) error {
	a, _, err := e.threads.GetWithTick(ctx, threadAID)
	if err != nil {
		return fmt.Errorf("merge: get thread A: %w", err)
	}
	b, _, err := e.threads.GetWithTick(ctx, threadBID)
	if err != nil {
		return fmt.Errorf("merge: get thread B: %w", err)
	}

	decision, err := e.decide(ctx, a, b)
	if err != nil {
		return err
	}
	if decision.Decision != "merge" {
		return fmt.Errorf("merge: arbiter rejected forced merge: %s", decision.Reason)
	}
	return e.apply(ctx, a, b, decision)
}

func (e *Evaluator) decide(ctx context.Context, a, b *memory.Thread) (Decision, error) {
	aMessages, err := e.messages.ListByThread(ctx, a.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("merge: list messages A: %w", err)
	}
	bMessages, err := e.messages.ListByThread(ctx, b.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("merge: list messages B: %w", err)
	}

	prompt := BuildPrompt(a, b, aMessages, bMessages)
	return e.requestDecision(ctx, prompt), nil
}

func (e *Evaluator) apply(ctx context.Context, a, b *memory.Thread, decision Decision) error {
	survivor, absorbed := a, b
	if decision.Survivor == "B" {
		survivor, absorbed = b, a
	}

	ConsolidateAfterMerge(survivor, absorbed, decision)
	enrichedText := manager.EnrichedEmbeddingText(survivorExtraction(survivor))
	newEmbedding, err := e.embedder.Embed(ctx, enrichedText)
	if err != nil {
		newEmbedding = survivor.Embedding
	}

	return e.executor.Execute(ctx, survivor, absorbed.ID, newEmbedding)
}

func (e *Evaluator) requestDecision(ctx context.Context, prompt string) Decision {
	if e.provider == nil {
		return Decision{Decision: "reject", Reason: "no_llm_configured"}
	}
	raw, err := e.provider.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn("merge LLM call failed, defaulting to reject", "error", err)
		}
		return Decision{Decision: "reject", Reason: "llm_call_failed"}
	}
	var decision Decision
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &decision); err != nil {
		if e.logger != nil {
			e.logger.Warn("merge LLM reply unparseable, defaulting to reject", "error", err)
		}
		return Decision{Decision: "reject", Reason: "unparseable_reply"}
	}
	if decision.Decision == "" {
		if e.logger != nil {
			e.logger.Warn("merge LLM reply carries no decision, defaulting to reject")
		}
		return Decision{Decision: "reject", Reason: "unparseable_reply"}
	}
	return decision
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "{}"
	}
	return raw[start : end+1]
}

func survivorExtraction(th *memory.Thread) extract.Extraction {
	return extract.Extraction{
		Title:    th.Title,
		Subjects: th.Topics,
		Labels:   th.Labels,
		Concepts: th.Concepts,
	}
}

func overlapScore(a, b []string) (shared int, ratio float64, richness float64) {
	setA := make(map[string]struct{}, len(a))
	for _, c := range a {
		setA[strings.ToLower(c)] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, c := range b {
		setB[strings.ToLower(c)] = struct{}{}
	}
	for c := range setA {
		if _, ok := setB[c]; ok {
			shared++
		}
	}
	minSize := len(setA)
	if len(setB) < minSize {
		minSize = len(setB)
	}
	if minSize > 0 {
		ratio = float64(shared) / float64(minSize)
	}
	richness = float64(shared) / 5.0
	if richness > 1 {
		richness = 1
	}
	return shared, ratio, richness
}
