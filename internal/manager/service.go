package manager

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/extract"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/index"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository the manager needs.
type ThreadRepository interface {
	Create(ctx context.Context, th *memory.Thread) error
	GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error)
	Update(ctx context.Context, th *memory.Thread, expectedTick int64) error
	ListActive(ctx context.Context) ([]*memory.Thread, error)
	ListSuspended(ctx context.Context) ([]*memory.Thread, error)
	CountActive(ctx context.Context) (int, error)
}

// MessageRepository is the subset of store.MessageRepository the manager needs.
type MessageRepository interface {
	Append(ctx context.Context, msg memory.ThreadMessage) error
	CountByThread(ctx context.Context, threadID string) (int, error)
}

// BridgeRepository is the subset of store.BridgeRepository the manager needs.
type BridgeRepository interface {
	Create(ctx context.Context, b *memory.Bridge) error
	ListForThread(ctx context.Context, threadID string) ([]*memory.Bridge, error)
}

// ConceptIndex is the subset of index.Index the manager consults for birth
// bridges (named distinctly from the topic index since both are wired in).
type ConceptIndex interface {
	Lookup(terms []string) []string
	Notify(threadID string, terms []string)
}

// Service is the thread manager.
type Service struct {
	threads  ThreadRepository
	messages MessageRepository
	bridges  BridgeRepository
	embedder embed.Backend
	concepts ConceptIndex
	topics   ConceptIndex
	cfg      guardianconfig.ThreadMatchingConfig
	quota    int
	logger   *slog.Logger
	now      func() time.Time
}

func New(
	threads ThreadRepository,
	messages MessageRepository,
	bridges BridgeRepository,
	embedder embed.Backend,
	concepts ConceptIndex,
	topics ConceptIndex,
	cfg guardianconfig.ThreadMatchingConfig,
	quota int,
	logger *slog.Logger,
) *Service {
	return &Service{
		threads: threads, messages: messages, bridges: bridges,
		embedder: embedder, concepts: concepts, topics: topics,
		cfg: cfg, quota: quota, logger: logger, now: time.Now,
	}
}

// EnrichedEmbeddingText builds the text the manager embeds for matching:
// title duplicated to weight it twice, then subjects/labels/concepts
// capped at 8 concepts, per spec §4.2.
func EnrichedEmbeddingText(ext extract.Extraction) string {
	concepts := ext.Concepts
	if len(concepts) > 8 {
		concepts = concepts[:8]
	}
	parts := []string{ext.Title, ext.Title}
	parts = append(parts, ext.Subjects...)
	parts = append(parts, ext.Labels...)
	parts = append(parts, concepts...)
	return strings.Join(parts, " ")
}

// Handle runs the full decision-and-apply pipeline for one captured input:
// decide an action, enforce quota if creating, apply it, and discover birth
// bridges. Returns the resulting thread id.
func (s *Service) Handle(ctx context.Context, rawInput string, ext extract.Extraction, parentHint *string) (string, Decision, error) {
	if ext.Confidence == 0 {
		return "", Decision{}, fmt.Errorf("manager: empty extraction, nothing to do")
	}

	queryEmb, err := s.embedder.Embed(ctx, EnrichedEmbeddingText(ext))
	if err != nil {
		return "", Decision{}, fmt.Errorf("manager: embed query: %w", err)
	}

	decision, err := s.decide(ctx, queryEmb, parentHint)
	if err != nil {
		return "", Decision{}, err
	}

	switch decision.Action {
	case ActionNewThread, ActionFork:
		id, err := s.create(ctx, rawInput, ext, queryEmb, decision)
		if err != nil {
			return "", decision, err
		}
		return id, decision, nil
	case ActionContinue, ActionReactivate:
		if err := s.update(ctx, decision.ThreadID, rawInput, ext, queryEmb); err != nil {
			return "", decision, err
		}
		return decision.ThreadID, decision, nil
	}
	return "", decision, fmt.Errorf("manager: unhandled decision %q", decision.Action)
}

// decide implements spec §4.2's dual-gate-then-general-search algorithm.
func (s *Service) decide(ctx context.Context, queryEmb []float32, parentHint *string) (Decision, error) {
	if s.embedder.Dimensions() == 0 {
		return Decision{Action: ActionNewThread}, nil
	}

	if parentHint != nil {
		parent, _, err := s.threads.GetWithTick(ctx, *parentHint)
		if err == nil && embed.Cosine(queryEmb, parent.Embedding) >= s.cfg.ContinueThreshold {
			return Decision{Action: ActionContinue, ThreadID: parent.ID}, nil
		}
	}

	active, err := s.threads.ListActive(ctx)
	if err != nil {
		return Decision{}, err
	}
	if best, score := bestMatch(queryEmb, active); best != nil && score >= s.cfg.ContinueThreshold {
		return Decision{Action: ActionContinue, ThreadID: best.ID}, nil
	}

	suspended, err := s.threads.ListSuspended(ctx)
	if err != nil {
		return Decision{}, err
	}
	if best, score := bestMatch(queryEmb, suspended); best != nil && score >= s.cfg.ReactivateThreshold {
		return Decision{Action: ActionReactivate, ThreadID: best.ID}, nil
	}

	return Decision{Action: ActionNewThread}, nil
}

func bestMatch(queryEmb []float32, candidates []*memory.Thread) (*memory.Thread, float64) {
	var best *memory.Thread
	var bestScore float64
	for _, th := range candidates {
		score := embed.Cosine(queryEmb, th.Embedding)
		if best == nil || score > bestScore {
			best, bestScore = th, score
		}
	}
	return best, bestScore
}

// create handles both NewThread and Fork: assigns an id, sets creation
// defaults per spec §4.2, attaches the raw input as the first message,
// enforces quota before insertion, and (on Fork) inserts the child_of
// bridge to the parent.
func (s *Service) create(ctx context.Context, rawInput string, ext extract.Extraction, emb []float32, decision Decision) (string, error) {
	if err := s.enforceQuotaForCreate(ctx); err != nil {
		return "", err
	}

	now := s.now()
	importance := ext.Importance
	if importance < 0.5 {
		importance = 0.5
	}
	relevance := 0.5 + 0.5*ext.Confidence

	th := &memory.Thread{
		ID:              uuid.NewString(),
		Title:           ext.Title,
		Status:          memory.StatusActive,
		Origin:          memory.OriginPrompt,
		Weight:          importance,
		Importance:      importance,
		RelevanceScore:  relevance,
		ActivationCount: 1,
		CreatedAt:       now,
		LastActive:      now,
		Topics:          ext.Subjects,
		Labels:          ext.Labels,
		Concepts:        ext.Concepts,
		Embedding:       emb,
	}
	if decision.Action == ActionFork {
		parentID := decision.ThreadID
		th.ParentID = &parentID
		th.Origin = memory.OriginSplit
	}
	th.NormalizeBags()

	if err := s.threads.Create(ctx, th); err != nil {
		return "", err
	}

	msg := memory.NewThreadMessage(uuid.NewString(), th.ID, rawInput, "capture", th.Origin, now)
	if err := s.messages.Append(ctx, msg); err != nil {
		return "", err
	}

	if decision.Action == ActionFork {
		bridge := &memory.Bridge{
			ID:         uuid.NewString(),
			SourceID:   th.ID,
			TargetID:   decision.ThreadID,
			Relation:   memory.RelationChildOf,
			Status:     memory.BridgeActive,
			Weight:     0.8,
			Confidence: ext.Confidence,
			CreatedBy:  memory.ProducerThreadManager,
			CreatedAt:  now,
		}
		if err := s.bridges.Create(ctx, bridge); err != nil {
			return "", err
		}
	}

	s.notifyIndexes(th)
	if err := s.discoverBirthBridges(ctx, th); err != nil && s.logger != nil {
		s.logger.Warn("birth bridge discovery failed", "thread_id", th.ID, "error", err)
	}
	return th.ID, nil
}

// update handles Continue/Reactivate: append message, boost weight, union
// bags, recompute embedding/importance, refresh work context.
func (s *Service) update(ctx context.Context, threadID, rawInput string, ext extract.Extraction, emb []float32) error {
	th, tick, err := s.threads.GetWithTick(ctx, threadID)
	if err != nil {
		return err
	}
	now := s.now()

	msg := memory.NewThreadMessage(uuid.NewString(), th.ID, rawInput, "capture", th.Origin, now)
	if err := s.messages.Append(ctx, msg); err != nil {
		return err
	}

	wasSuspended := th.Status == memory.StatusSuspended
	th.Status = memory.StatusActive
	th.Weight = min1(th.Weight + 0.1)
	th.Topics = append(th.Topics, ext.Subjects...)
	th.Labels = append(th.Labels, ext.Labels...)
	newConcepts := ext.Concepts
	th.Concepts = append(th.Concepts, newConcepts...)
	th.NormalizeBags()
	th.Embedding = emb
	th.ActivationCount++
	th.LastActive = now

	if th.WorkContext == nil {
		th.WorkContext = &memory.WorkContext{}
	}
	th.WorkContext.UpdatedAt = now

	if !th.ImportanceManuallySet {
		msgCount, err := s.messages.CountByThread(ctx, th.ID)
		if err != nil {
			return err
		}
		th.Importance = autoImportance(th, msgCount)
	}
	if wasSuspended {
		th.Origin = memory.OriginReactivation
	}

	if err := s.threads.Update(ctx, th, tick); err != nil {
		return err
	}

	s.notifyIndexes(th)
	if len(newConcepts) > 0 {
		if err := s.discoverBirthBridges(ctx, th); err != nil && s.logger != nil {
			s.logger.Warn("birth bridge discovery failed", "thread_id", th.ID, "error", err)
		}
	}
	return nil
}

// autoImportance implements spec §4.2's formula, never applied when the
// thread's importance was manually set by a human/agent. msgCount is the
// thread's actual message count, not activation_count — they move together
// under today's one-message-per-Handle flow but aren't the same thing.
func autoImportance(th *memory.Thread, msgCount int) float64 {
	importance := th.Importance
	if importance < 0.5 {
		importance = 0.5
	}

	switch {
	case msgCount > 7:
		importance = math.Max(importance, 0.7)
	case msgCount > 3:
		importance = math.Max(importance, 0.6)
	}
	if th.ActivationCount > 3 {
		importance += 0.1
	}
	if bagIntersects(th.Labels, "architecture", "security", "bug-fix", "performance") {
		importance += 0.1
	}
	if bagIntersects(th.Labels, "joke", "social") {
		importance -= 0.1
	}
	importance += th.WorkContext.ImportanceBoost()

	return clamp01(importance)
}

func bagIntersects(bag []string, targets ...string) bool {
	set := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		set[strings.ToLower(t)] = struct{}{}
	}
	for _, b := range bag {
		if _, ok := set[strings.ToLower(b)]; ok {
			return true
		}
	}
	return false
}

// EnforceQuota sorts active threads by (importance asc, weight asc) and
// suspends the n lowest-ranked, spec §4.2's enforce_quota(n).
func (s *Service) EnforceQuota(ctx context.Context, n int) error {
	active, err := s.threads.ListActive(ctx)
	if err != nil {
		return err
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].Importance != active[j].Importance {
			return active[i].Importance < active[j].Importance
		}
		return active[i].Weight < active[j].Weight
	})
	for i := 0; i < n && i < len(active); i++ {
		th, tick, err := s.threads.GetWithTick(ctx, active[i].ID)
		if err != nil {
			return err
		}
		th.Status = memory.StatusSuspended
		if err := s.threads.Update(ctx, th, tick); err != nil {
			return err
		}
	}
	return nil
}

// enforceQuotaForCreate frees a slot before a create if the project is
// already at quota, per spec §4.2's two-strategy algorithm.
func (s *Service) enforceQuotaForCreate(ctx context.Context) error {
	count, err := s.threads.CountActive(ctx)
	if err != nil {
		return err
	}
	if count < s.quota {
		return nil
	}

	active, err := s.threads.ListActive(ctx)
	if err != nil {
		return err
	}

	// Strategy A: suspend the lower-weight member of the most-similar pair.
	if loser := mostSimilarPairLoser(active, s.cfg.CapacitySuspendThreshold); loser != nil {
		return s.suspendOne(ctx, loser.ID)
	}

	// Strategy B: suspend the single lowest-weight active thread, then let
	// EnforceQuota drop whatever overflow remains.
	var lowest *memory.Thread
	for _, th := range active {
		if lowest == nil || th.Weight < lowest.Weight {
			lowest = th
		}
	}
	if lowest == nil {
		return nil
	}
	if err := s.suspendOne(ctx, lowest.ID); err != nil {
		return err
	}
	if overflow := count - s.quota; overflow > 0 {
		return s.EnforceQuota(ctx, overflow)
	}
	return nil
}

func mostSimilarPairLoser(threads []*memory.Thread, threshold float64) *memory.Thread {
	var bestScore float64 = -1
	var loser *memory.Thread
	for i := 0; i < len(threads); i++ {
		for j := i + 1; j < len(threads); j++ {
			score := embed.Cosine(threads[i].Embedding, threads[j].Embedding)
			if score > bestScore {
				bestScore = score
				if threads[i].Weight <= threads[j].Weight {
					loser = threads[i]
				} else {
					loser = threads[j]
				}
			}
		}
	}
	if bestScore < threshold {
		return nil
	}
	return loser
}

func (s *Service) suspendOne(ctx context.Context, id string) error {
	th, tick, err := s.threads.GetWithTick(ctx, id)
	if err != nil {
		return err
	}
	th.Status = memory.StatusSuspended
	return s.threads.Update(ctx, th, tick)
}

// discoverBirthBridges implements spec §4.2's birth bridge step: search
// for threads sharing newly introduced concepts and link qualifying pairs.
func (s *Service) discoverBirthBridges(ctx context.Context, th *memory.Thread) error {
	candidateIDs := s.concepts.Lookup(th.Concepts)
	for _, candidateID := range candidateIDs {
		if candidateID == th.ID {
			continue
		}
		existing, err := s.bridges.ListForThread(ctx, th.ID)
		if err != nil {
			return err
		}
		if hasActiveBridgeTo(existing, candidateID) {
			continue
		}

		candidate, _, err := s.threads.GetWithTick(ctx, candidateID)
		if err != nil {
			continue
		}

		shared, ratio, richness := sharedConceptStats(th.Concepts, candidate.Concepts)
		weight := 0.5*ratio + 0.5*richness
		if weight < 0.20 {
			continue
		}

		relation := memory.RelationSibling
		if th.ParentID != nil && *th.ParentID == candidate.ID {
			relation = memory.RelationChildOf
		} else if weight >= 0.80 && th.CreatedAt.After(candidate.CreatedAt) {
			relation = memory.RelationExtends
		}

		bridge := &memory.Bridge{
			ID:             uuid.NewString(),
			SourceID:       th.ID,
			TargetID:       candidate.ID,
			Relation:       relation,
			Status:         memory.BridgeActive,
			Weight:         weight,
			Confidence:     0.6,
			Reason:         fmt.Sprintf("birth:concept_overlap(%d)", shared),
			SharedConcepts: sharedConcepts(th.Concepts, candidate.Concepts),
			CreatedBy:      memory.ProducerBirth,
			CreatedAt:      s.now(),
		}
		if err := s.bridges.Create(ctx, bridge); err != nil {
			return err
		}
	}
	return nil
}

func hasActiveBridgeTo(bridges []*memory.Bridge, targetID string) bool {
	for _, b := range bridges {
		if b.Status == memory.BridgeInvalid {
			continue
		}
		if b.SourceID == targetID || b.TargetID == targetID {
			return true
		}
	}
	return false
}

func sharedConceptStats(a, b []string) (shared int, ratio, richness float64) {
	setA := toSet(a)
	setB := toSet(b)
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

func sharedConcepts(a, b []string) []string {
	setB := toSet(b)
	var out []string
	for c := range toSet(a) {
		if _, ok := setB[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, i := range items {
		set[strings.ToLower(i)] = struct{}{}
	}
	return set
}

func (s *Service) notifyIndexes(th *memory.Thread) {
	s.concepts.Notify(th.ID, th.Concepts)
	s.topics.Notify(th.ID, th.Topics)
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
