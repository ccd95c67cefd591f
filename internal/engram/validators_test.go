package engram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/memory"
)

func TestSemanticSimilarity_NeutralWithoutEmbeddings(t *testing.T) {
	v := SemanticSimilarity{Threshold: 0.5}
	vote := v.Vote(QueryContext{}, &memory.Thread{})
	require.True(t, vote.Pass)
}

func TestSemanticSimilarity_PassesAboveThreshold(t *testing.T) {
	v := SemanticSimilarity{Threshold: 0.9}
	qc := QueryContext{QueryEmbedding: []float32{1, 0}}
	th := &memory.Thread{Embedding: []float32{1, 0}}
	vote := v.Vote(qc, th)
	require.True(t, vote.Pass)
	require.InDelta(t, 1.0, vote.Confidence, 0.0001)
}

func TestSemanticSimilarity_FailsBelowThreshold(t *testing.T) {
	v := SemanticSimilarity{Threshold: 0.9}
	qc := QueryContext{QueryEmbedding: []float32{1, 0}}
	th := &memory.Thread{Embedding: []float32{0, 1}}
	vote := v.Vote(qc, th)
	require.False(t, vote.Pass)
}

func TestTopicOverlap(t *testing.T) {
	v := TopicOverlap{MinShared: 2}
	qc := QueryContext{QueryTopics: []string{"ci", "deploy"}}

	require.True(t, v.Vote(qc, &memory.Thread{Topics: []string{"CI", "Deploy"}}).Pass)
	require.False(t, v.Vote(qc, &memory.Thread{Topics: []string{"CI"}}).Pass)
}

func TestTemporalProximity_NeutralWithoutWorkContext(t *testing.T) {
	v := TemporalProximity{}
	vote := v.Vote(QueryContext{Now: time.Now()}, &memory.Thread{})
	require.True(t, vote.Pass)
}

func TestTemporalProximity_FreshWorkContextPasses(t *testing.T) {
	v := TemporalProximity{}
	now := time.Now()
	th := &memory.Thread{WorkContext: &memory.WorkContext{UpdatedAt: now}}
	vote := v.Vote(QueryContext{Now: now}, th)
	require.True(t, vote.Pass)
}

func TestGraphConnectivity(t *testing.T) {
	v := GraphConnectivity{}
	th := &memory.Thread{ID: "t1"}

	require.True(t, v.Vote(QueryContext{}, th).Pass) // neutral, no bridges

	qc := QueryContext{ActiveBridges: []*memory.Bridge{
		{SourceID: "t1", TargetID: "t2", Status: memory.BridgeActive, Weight: 0.7},
	}}
	require.True(t, v.Vote(qc, th).Pass)

	qcInvalid := QueryContext{ActiveBridges: []*memory.Bridge{
		{SourceID: "t1", TargetID: "t2", Status: memory.BridgeInvalid, Weight: 0.7},
	}}
	require.False(t, v.Vote(qcInvalid, th).Pass)
}

func TestDecayedRelevance(t *testing.T) {
	v := DecayedRelevance{MinScore: 0.2}
	require.True(t, v.Vote(QueryContext{}, &memory.Thread{Weight: 0.5, Importance: 0.5}).Pass)
	require.False(t, v.Vote(QueryContext{}, &memory.Thread{Weight: 0.1, Importance: 0.1}).Pass)
}

func TestLabelCoherence(t *testing.T) {
	v := LabelCoherence{}
	qc := QueryContext{LabelHint: "bug"}

	require.True(t, v.Vote(qc, &memory.Thread{Labels: []string{"Bug"}}).Pass)
	require.False(t, v.Vote(qc, &memory.Thread{Labels: []string{"feature"}}).Pass)
	require.True(t, v.Vote(QueryContext{}, &memory.Thread{}).Pass)
}

func TestFocusAlignment(t *testing.T) {
	v := FocusAlignment{}
	qc := QueryContext{FocusTopics: []string{"auth"}}

	require.True(t, v.Vote(qc, &memory.Thread{Topics: []string{"Auth"}}).Pass)
	require.False(t, v.Vote(qc, &memory.Thread{Topics: []string{"billing"}}).Pass)
}

func TestConceptCoherence(t *testing.T) {
	v := ConceptCoherence{MinShared: 1}
	qc := QueryContext{QueryConcepts: []string{"retry", "backoff"}}

	require.True(t, v.Vote(qc, &memory.Thread{Concepts: []string{"retry"}}).Pass)
	require.False(t, v.Vote(qc, &memory.Thread{Concepts: []string{"unrelated"}}).Pass)
}

func TestDefaultValidators_ReturnsNine(t *testing.T) {
	require.Len(t, DefaultValidators(0.5), 9)
}
