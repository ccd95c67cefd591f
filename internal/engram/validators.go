package engram

import (
	"strings"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/memory"
)

// SemanticSimilarity passes when cosine(query_emb, thread.emb) meets the
// configured threshold. Neutral when either embedding is absent.
type SemanticSimilarity struct{ Threshold float64 }

func (SemanticSimilarity) Name() string { return "semantic_similarity" }

func (v SemanticSimilarity) Vote(qc QueryContext, th *memory.Thread) Vote {
	if len(qc.QueryEmbedding) == 0 || len(th.Embedding) == 0 {
		return NeutralVote(0.3)
	}
	sim := embed.Cosine(qc.QueryEmbedding, th.Embedding)
	return Vote{Pass: sim >= v.Threshold, Confidence: sim}
}

// TopicOverlap passes when the query and thread share at least MinShared
// topics.
type TopicOverlap struct{ MinShared int }

func (TopicOverlap) Name() string { return "topic_overlap" }

func (v TopicOverlap) Vote(qc QueryContext, th *memory.Thread) Vote {
	if len(qc.QueryTopics) == 0 {
		return NeutralVote(0.3)
	}
	shared := sharedCount(qc.QueryTopics, th.Topics)
	minShared := v.MinShared
	if minShared <= 0 {
		minShared = 1
	}
	confidence := float64(shared) / float64(len(qc.QueryTopics))
	return Vote{Pass: shared >= minShared, Confidence: confidence}
}

// TemporalProximity passes when the thread's work context freshness
// exceeds 0.1.
type TemporalProximity struct{}

func (TemporalProximity) Name() string { return "temporal_proximity" }

func (v TemporalProximity) Vote(qc QueryContext, th *memory.Thread) Vote {
	if th.WorkContext == nil {
		return NeutralVote(0.2)
	}
	freshness := th.WorkContext.FreshnessFactor(qc.Now)
	return Vote{Pass: freshness > 0.1, Confidence: freshness}
}

// GraphConnectivity passes when an active bridge connects the candidate to
// another active thread.
type GraphConnectivity struct{}

func (GraphConnectivity) Name() string { return "graph_connectivity" }

func (v GraphConnectivity) Vote(qc QueryContext, th *memory.Thread) Vote {
	if len(qc.ActiveBridges) == 0 {
		return NeutralVote(0.2)
	}
	var best float64
	found := false
	for _, b := range qc.ActiveBridges {
		if b.Status == memory.BridgeInvalid {
			continue
		}
		if b.SourceID == th.ID || b.TargetID == th.ID {
			found = true
			if b.Weight > best {
				best = b.Weight
			}
		}
	}
	if !found {
		return Vote{Pass: false, Confidence: 0}
	}
	return Vote{Pass: true, Confidence: best}
}

// InjectionHistory passes when the thread's usage ratio is healthy or it
// hasn't been injected enough times to judge yet.
type InjectionHistory struct{}

func (InjectionHistory) Name() string { return "injection_history" }

func (v InjectionHistory) Vote(qc QueryContext, th *memory.Thread) Vote {
	if th.InjectionStats == nil {
		return NeutralVote(0.5)
	}
	ratio := th.InjectionStats.UsageRatio()
	pass := ratio >= 0.2 || th.InjectionStats.InjectionCount < 3
	return Vote{Pass: pass, Confidence: ratio}
}

// DecayedRelevance passes when weight*importance meets a minimum score.
type DecayedRelevance struct{ MinScore float64 }

func (DecayedRelevance) Name() string { return "decayed_relevance" }

func (v DecayedRelevance) Vote(qc QueryContext, th *memory.Thread) Vote {
	minScore := v.MinScore
	if minScore <= 0 {
		minScore = 0.1
	}
	score := th.Weight * th.Importance
	return Vote{Pass: score >= minScore, Confidence: score}
}

// LabelCoherence passes when the thread's labels match the query's label
// hint, or there's no hint to check against.
type LabelCoherence struct{}

func (LabelCoherence) Name() string { return "label_coherence" }

func (v LabelCoherence) Vote(qc QueryContext, th *memory.Thread) Vote {
	if qc.LabelHint == "" {
		return NeutralVote(0.3)
	}
	if len(th.Labels) == 0 {
		return Vote{Pass: true, Confidence: 0.3}
	}
	for _, l := range th.Labels {
		if strings.EqualFold(l, qc.LabelHint) {
			return Vote{Pass: true, Confidence: 0.9}
		}
	}
	return Vote{Pass: false, Confidence: 0.1}
}

// FocusAlignment passes when the thread matches one of the session's
// focus topics.
type FocusAlignment struct{}

func (FocusAlignment) Name() string { return "focus_alignment" }

func (v FocusAlignment) Vote(qc QueryContext, th *memory.Thread) Vote {
	if len(qc.FocusTopics) == 0 {
		return NeutralVote(0.3)
	}
	matched := false
	var maxWeight float64
	for _, f := range qc.FocusTopics {
		for _, t := range th.Topics {
			if strings.EqualFold(f, t) {
				matched = true
				maxWeight = 1.0
			}
		}
	}
	if !matched {
		return Vote{Pass: false, Confidence: 0}
	}
	return Vote{Pass: true, Confidence: maxWeight}
}

// ConceptCoherence passes when the query and thread share at least
// MinShared concepts.
type ConceptCoherence struct{ MinShared int }

func (ConceptCoherence) Name() string { return "concept_coherence" }

func (v ConceptCoherence) Vote(qc QueryContext, th *memory.Thread) Vote {
	if len(qc.QueryConcepts) == 0 {
		return NeutralVote(0.3)
	}
	shared := sharedCount(qc.QueryConcepts, th.Concepts)
	minShared := v.MinShared
	if minShared <= 0 {
		minShared = 2
	}
	total := len(qc.QueryConcepts) + len(th.Concepts)
	var confidence float64
	if total > 0 {
		confidence = float64(shared) / float64(total)
	}
	return Vote{Pass: shared >= minShared, Confidence: confidence}
}

func sharedCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, x := range a {
		set[strings.ToLower(x)] = struct{}{}
	}
	count := 0
	for _, x := range b {
		if _, ok := set[strings.ToLower(x)]; ok {
			count++
		}
	}
	return count
}

// DefaultValidators returns the nine validators named in spec §4.3, in
// registration order matching guardianconfig's validator_weights vector.
func DefaultValidators(continueThreshold float64) []Validator {
	return []Validator{
		SemanticSimilarity{Threshold: continueThreshold},
		TopicOverlap{MinShared: 1},
		TemporalProximity{},
		GraphConnectivity{},
		InjectionHistory{},
		DecayedRelevance{MinScore: 0.1},
		LabelCoherence{},
		FocusAlignment{},
		ConceptCoherence{MinShared: 2},
	}
}
