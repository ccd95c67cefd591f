// Package gossip implements the periodic concept-overlap bridge discovery
// loop (spec §4.4): re-reads all threads, consults the concept inverted
// index for overlap pairs, and inserts or reinforces bridges for
// qualifying pairs, followed by a legacy topic-overlap phase and a
// one-time v1 invalidation pass.
package gossip

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/index"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository gossip needs.
type ThreadRepository interface {
	ListAll(ctx context.Context) ([]*memory.Thread, error)
}

// BridgeRepository is the subset of store.BridgeRepository gossip needs.
type BridgeRepository interface {
	ListForThread(ctx context.Context, threadID string) ([]*memory.Bridge, error)
	ListAll(ctx context.Context) ([]*memory.Bridge, error)
	Create(ctx context.Context, b *memory.Bridge) error
	Update(ctx context.Context, b *memory.Bridge) error
}

// MergeCandidateSink receives candidates emitted when a newly discovered
// bridge's weight meets the merge evaluation threshold.
type MergeCandidateSink interface {
	Submit(ctx context.Context, bridgeID string) error
}

// Engine runs one gossip pass.
type Engine struct {
	threads  ThreadRepository
	bridges  BridgeRepository
	concepts *index.Index
	topics   *index.Index
	sink     MergeCandidateSink
	cfg      guardianconfig.GossipConfig
	logger   *slog.Logger
	now      func() time.Time

	v1InvalidationDone bool
}

func New(threads ThreadRepository, bridges BridgeRepository, concepts, topics *index.Index, sink MergeCandidateSink, cfg guardianconfig.GossipConfig, logger *slog.Logger) *Engine {
	return &Engine{threads: threads, bridges: bridges, concepts: concepts, topics: topics, sink: sink, cfg: cfg, logger: logger, now: time.Now}
}

const mergeEvaluationThreshold = 0.60

// Run executes one gossip cycle: concept-overlap phase, legacy
// topic-overlap phase, then the one-time v1 invalidation pass.
func (e *Engine) Run(ctx context.Context) error {
	threads, err := e.threads.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("gossip: list threads: %w", err)
	}
	byID := make(map[string]*memory.Thread, len(threads))
	for _, th := range threads {
		byID[th.ID] = th
	}

	maxPer, _ := dynamicLimits(len(threads), e.cfg)

	overlaps := e.concepts.FindOverlaps(minShared(e.cfg.MinShared, 2))
	for _, ov := range overlaps {
		if err := e.processPair(ctx, byID, ov.A, ov.B, false, maxPer); err != nil && e.logger != nil {
			e.logger.Warn("gossip concept pair failed", "a", ov.A, "b", ov.B, "error", err)
		}
	}

	// Legacy topic-overlap phase: threads with topics but no concepts.
	legacyOverlaps := e.topics.FindOverlaps(2)
	for _, ov := range legacyOverlaps {
		a, okA := byID[ov.A]
		b, okB := byID[ov.B]
		if !okA || !okB || len(a.Concepts) > 0 || len(b.Concepts) > 0 {
			continue
		}
		if err := e.processPair(ctx, byID, ov.A, ov.B, true, maxPer); err != nil && e.logger != nil {
			e.logger.Warn("gossip legacy topic pair failed", "a", ov.A, "b", ov.B, "error", err)
		}
	}

	if !e.v1InvalidationDone {
		if err := e.invalidateV1Propagations(ctx); err != nil {
			return fmt.Errorf("gossip: v1 invalidation: %w", err)
		}
		e.v1InvalidationDone = true
	}

	return nil
}

func minShared(configured, fallback int) int {
	if configured <= 0 {
		return fallback
	}
	return configured
}

// dynamicLimits implements spec §4.6: max_total = ceil(n*ratio),
// max_per = clamp(max_total/n, min_per, max_per).
func dynamicLimits(n int, cfg guardianconfig.GossipConfig) (maxPer int, maxTotal int) {
	if n == 0 {
		return cfg.MaxPer, 0
	}
	ratio := cfg.TargetBridgeRatio
	if ratio <= 0 {
		ratio = 1.5
	}
	maxTotal = int(math.Ceil(float64(n) * ratio))
	per := maxTotal / n
	if per < cfg.MinPer {
		per = cfg.MinPer
	}
	if cfg.MaxPer > 0 && per > cfg.MaxPer {
		per = cfg.MaxPer
	}
	return per, maxTotal
}

func (e *Engine) processPair(ctx context.Context, byID map[string]*memory.Thread, aID, bID string, legacy bool, maxPer int) error {
	a, okA := byID[aID]
	b, okB := byID[bID]
	if !okA || !okB {
		return nil
	}

	existingA, err := e.bridges.ListForThread(ctx, aID)
	if err != nil {
		return err
	}
	if countActive(existingA) >= maxPer {
		return nil
	}
	existingB, err := e.bridges.ListForThread(ctx, bID)
	if err != nil {
		return err
	}
	if countActive(existingB) >= maxPer {
		return nil
	}

	existing := findBridgeBetween(existingA, aID, bID)

	var weight, confidence float64
	var createdBy memory.Producer
	var shared []string
	if legacy {
		weight, confidence = 0.5, 0.6
		createdBy = memory.ProducerGossipV2
		shared = sharedTerms(a.Topics, b.Topics)
	} else {
		sharedConcepts := sharedTerms(a.Concepts, b.Concepts)
		overlapRatio := ratio(len(sharedConcepts), min(len(a.Concepts), len(b.Concepts)))
		weight = 0.5*overlapRatio + 0.5*math.Min(float64(len(sharedConcepts))/5.0, 1)
		confidence = 0.7
		createdBy = memory.ProducerGossipV2
		shared = sharedConcepts
	}

	if existing != nil {
		if existing.CreatedBy == memory.ProducerGossipV2 && weight > existing.Weight {
			existing.Weight = weight
			return e.bridges.Update(ctx, existing)
		}
		return nil
	}

	if weight < 0.20 {
		return nil
	}

	relation := relationFor(a, b, weight)
	bridge := &memory.Bridge{
		ID:             uuid.NewString(),
		SourceID:       aID,
		TargetID:       bID,
		Relation:       relation,
		Status:         memory.BridgeActive,
		Weight:         weight,
		Confidence:     confidence,
		SharedConcepts: shared,
		CreatedBy:      createdBy,
		CreatedAt:      e.now(),
	}
	if err := e.bridges.Create(ctx, bridge); err != nil {
		return err
	}

	if weight >= mergeEvaluationThreshold && e.sink != nil {
		if err := e.sink.Submit(ctx, bridge.ID); err != nil && e.logger != nil {
			e.logger.Warn("merge candidate submission failed", "bridge_id", bridge.ID, "error", err)
		}
	}
	return nil
}

func relationFor(a, b *memory.Thread, weight float64) memory.RelationType {
	if a.ParentID != nil && *a.ParentID == b.ID {
		return memory.RelationChildOf
	}
	if b.ParentID != nil && *b.ParentID == a.ID {
		return memory.RelationChildOf
	}
	if a.ParentID != nil && b.ParentID != nil && *a.ParentID == *b.ParentID {
		return memory.RelationSibling
	}
	if weight >= 0.80 && a.CreatedAt.After(b.CreatedAt) {
		return memory.RelationExtends
	}
	return memory.RelationSibling
}

// invalidateV1Propagations marks any bridge whose reason matches
// "gossip:propagation%" as invalid — idempotent, run once per process.
func (e *Engine) invalidateV1Propagations(ctx context.Context) error {
	all, err := e.bridges.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, b := range all {
		if strings.HasPrefix(b.Reason, "gossip:propagation") && b.Status != memory.BridgeInvalid {
			b.Status = memory.BridgeInvalid
			if err := e.bridges.Update(ctx, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func countActive(bridges []*memory.Bridge) int {
	n := 0
	for _, b := range bridges {
		if b.Status != memory.BridgeInvalid {
			n++
		}
	}
	return n
}

func findBridgeBetween(bridges []*memory.Bridge, aID, bID string) *memory.Bridge {
	for _, b := range bridges {
		if (b.SourceID == aID && b.TargetID == bID) || (b.SourceID == bID && b.TargetID == aID) {
			return b
		}
	}
	return nil
}

func sharedTerms(a, b []string) []string {
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[strings.ToLower(t)] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, t := range a {
		key := strings.ToLower(t)
		if _, ok := setB[key]; ok {
			if _, dup := seen[key]; !dup {
				seen[key] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}

func ratio(numerator, denominator int) float64 {
	if denominator == 0 {
		return 0
	}
	return float64(numerator) / float64(denominator)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
