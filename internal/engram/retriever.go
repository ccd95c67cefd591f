package engram

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository is the subset of store.ThreadRepository the retriever needs.
type ThreadRepository interface {
	ListActive(ctx context.Context) ([]*memory.Thread, error)
	ListAll(ctx context.Context) ([]*memory.Thread, error)
	GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error)
	Update(ctx context.Context, th *memory.Thread, expectedTick int64) error
}

// BridgeRepository is the subset of store.BridgeRepository the retriever needs.
type BridgeRepository interface {
	ListForThread(ctx context.Context, threadID string) ([]*memory.Bridge, error)
	Update(ctx context.Context, b *memory.Bridge) error
}

// Index is the subset of index.Index the retriever's Phase 1 prefilter uses.
type Index interface {
	Lookup(terms []string) []string
	ExtractMatching(text string) []string
}

// Retriever is the engram retrieval oracle.
type Retriever struct {
	threads    ThreadRepository
	bridges    BridgeRepository
	topics     Index
	concepts   Index
	embedder   embed.Backend
	validators []Validator
	weights    []float64
	strongMin  int
	weakMin    int
	maxCand    int
	now        func() time.Time
}

func New(
	threads ThreadRepository,
	bridges BridgeRepository,
	topics Index,
	concepts Index,
	embedder embed.Backend,
	validators []Validator,
	weights []float64,
	strongMin, weakMin, maxCandidates int,
) *Retriever {
	return &Retriever{
		threads: threads, bridges: bridges, topics: topics, concepts: concepts,
		embedder: embedder, validators: validators, weights: weights,
		strongMin: strongMin, weakMin: weakMin, maxCand: maxCandidates,
		now: time.Now,
	}
}

// GetRelevantContext is Phase 1-3 with the strong/weak distinction: only
// StrongInject and WeakInject candidates are returned, ranked by score.
func (r *Retriever) GetRelevantContext(ctx context.Context, userMessage string, focusTopics []string, limit int) ([]*memory.Thread, error) {
	candidates, err := r.prefilter(ctx, userMessage, true)
	if err != nil {
		return nil, err
	}
	scored, err := r.score(ctx, userMessage, focusTopics, candidates)
	if err != nil {
		return nil, err
	}

	var injectable []Scored
	for _, s := range scored {
		if s.Decision != Skip {
			injectable = append(injectable, s)
		}
	}
	sort.Slice(injectable, func(i, j int) bool { return injectable[i].WeightedScore > injectable[j].WeightedScore })
	if len(injectable) > limit {
		injectable = injectable[:limit]
	}

	result := make([]*memory.Thread, len(injectable))
	for i, s := range injectable {
		result[i] = s.Thread
	}
	if err := r.reinforce(ctx, result); err != nil {
		return result, err
	}
	return result, nil
}

// Search is the broader variant: no strong/weak distinction, ranked by
// weighted score regardless of pass_count, over a LIKE-based text
// prefilter fallback when the indexes yield nothing.
func (r *Retriever) Search(ctx context.Context, query string, limit int) ([]*memory.Thread, error) {
	candidates, err := r.prefilter(ctx, query, false)
	if err != nil {
		return nil, err
	}
	scored, err := r.score(ctx, query, nil, candidates)
	if err != nil {
		return nil, err
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].WeightedScore > scored[j].WeightedScore })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	result := make([]*memory.Thread, len(scored))
	for i, s := range scored {
		result[i] = s.Thread
	}
	return result, nil
}

// prefilter implements Phase 1: union index postings, cap at maxCand, and
// fall back to a full scan (active threads for get_relevant_context, all
// threads text-matched for search) when both indexes are empty.
func (r *Retriever) prefilter(ctx context.Context, text string, activeOnly bool) ([]*memory.Thread, error) {
	topicTerms := r.topics.ExtractMatching(text)
	conceptTerms := r.concepts.ExtractMatching(text)

	ids := unionIDs(r.topics.Lookup(topicTerms), r.concepts.Lookup(conceptTerms))
	if len(ids) == 0 {
		if activeOnly {
			return r.threads.ListActive(ctx)
		}
		return r.textSearchFallback(ctx, text)
	}
	if len(ids) > r.maxCand {
		ids = ids[:r.maxCand]
	}

	threads := make([]*memory.Thread, 0, len(ids))
	for _, id := range ids {
		th, _, err := r.threads.GetWithTick(ctx, id)
		if err != nil {
			continue
		}
		threads = append(threads, th)
	}
	return threads, nil
}

func (r *Retriever) textSearchFallback(ctx context.Context, query string) ([]*memory.Thread, error) {
	all, err := r.threads.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	lower := strings.ToLower(query)
	var matched []*memory.Thread
	for _, th := range all {
		if strings.Contains(strings.ToLower(th.Title), lower) || strings.Contains(strings.ToLower(th.Summary), lower) {
			matched = append(matched, th)
		}
	}
	return matched, nil
}

func unionIDs(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, id := range list {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

// score runs Phase 2 (validator voting) and Phase 3 (consensus) for each
// candidate.
func (r *Retriever) score(ctx context.Context, queryText string, focusTopics []string, candidates []*memory.Thread) ([]Scored, error) {
	queryEmb, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		queryEmb = nil
	}
	qc := QueryContext{
		QueryEmbedding: queryEmb,
		QueryTopics:    r.topics.ExtractMatching(queryText),
		QueryConcepts:  r.concepts.ExtractMatching(queryText),
		FocusTopics:    focusTopics,
		Now:            r.now(),
	}

	results := make([]Scored, 0, len(candidates))
	for _, th := range candidates {
		bridges, err := r.bridges.ListForThread(ctx, th.ID)
		if err != nil {
			bridges = nil
		}
		qc.ActiveBridges = bridges

		votes := make([]Vote, len(r.validators))
		var weightedScore float64
		var passCount int
		for i, validator := range r.validators {
			vote := validator.Vote(qc, th)
			votes[i] = vote
			if vote.Pass {
				passCount++
				weight := 1.0
				if i < len(r.weights) {
					weight = r.weights[i]
				}
				weightedScore += vote.Confidence * weight
			}
		}

		decision := Skip
		if passCount >= r.strongMin {
			decision = StrongInject
		} else if passCount >= r.weakMin {
			decision = WeakInject
		}

		results = append(results, Scored{
			Thread: th, WeightedScore: weightedScore, PassCount: passCount,
			Decision: decision, Votes: votes,
		})
	}
	return results, nil
}

// reinforce implements Hebbian reinforcement: after injection, every
// bridge connecting any two returned threads has last_reinforced = now,
// resetting its decay clock without touching weight.
func (r *Retriever) reinforce(ctx context.Context, injected []*memory.Thread) error {
	if len(injected) < 2 {
		return nil
	}
	idSet := make(map[string]struct{}, len(injected))
	for _, th := range injected {
		idSet[th.ID] = struct{}{}
	}

	now := r.now()
	seen := make(map[string]struct{})
	for _, th := range injected {
		bridges, err := r.bridges.ListForThread(ctx, th.ID)
		if err != nil {
			continue
		}
		for _, b := range bridges {
			if _, ok := seen[b.ID]; ok {
				continue
			}
			other := b.SourceID
			if other == th.ID {
				other = b.TargetID
			}
			if _, ok := idSet[other]; !ok {
				continue
			}
			seen[b.ID] = struct{}{}
			b.LastReinforced = &now
			if err := r.bridges.Update(ctx, b); err != nil {
				return err
			}
		}
	}
	return nil
}
