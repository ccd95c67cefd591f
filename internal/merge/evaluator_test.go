package merge

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rpggio/memengine/internal/memory"
	"github.com/stretchr/testify/require"
)

type fakeThreads struct {
	byID map[string]*memory.Thread
}

func (f *fakeThreads) GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error) {
	th, ok := f.byID[id]
	if !ok {
		return nil, 0, errors.New("thread not found")
	}
	return th, 1, nil
}

type fakeMessages struct {
	byThread map[string][]memory.ThreadMessage
}

func (f *fakeMessages) ListByThread(ctx context.Context, threadID string) ([]memory.ThreadMessage, error) {
	return f.byThread[threadID], nil
}

type fakeBridges struct {
	byID    map[string]*memory.Bridge
	updated []*memory.Bridge
}

func (f *fakeBridges) Get(ctx context.Context, id string) (*memory.Bridge, error) {
	b, ok := f.byID[id]
	if !ok {
		return nil, errors.New("bridge not found")
	}
	return b, nil
}

func (f *fakeBridges) Update(ctx context.Context, b *memory.Bridge) error {
	f.updated = append(f.updated, b)
	f.byID[b.ID] = b
	return nil
}

type fakeExecutor struct {
	calls []string
	err   error
}

func (f *fakeExecutor) Execute(ctx context.Context, survivor *memory.Thread, absorbedID string, newEmbedding []float32) error {
	f.calls = append(f.calls, survivor.ID+"<-"+absorbedID)
	return f.err
}

type fakeProvider struct {
	reply string
	err   error
}

func (f *fakeProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

func (fakeEmbedder) Dimensions() int { return 2 }

func threadWithConcepts(id string, concepts []string) *memory.Thread {
	return &memory.Thread{
		ID:         id,
		Title:      "thread-" + id,
		Status:     memory.StatusActive,
		Weight:     0.5,
		Importance: 0.5,
		Concepts:   concepts,
		CreatedAt:  time.Now(),
		LastActive: time.Now(),
	}
}

func newEvaluator(threads *fakeThreads, messages *fakeMessages, bridges *fakeBridges, executor *fakeExecutor, provider *fakeProvider) *Evaluator {
	return New(threads, messages, bridges, executor, provider, fakeEmbedder{}, nil)
}

func TestEvaluate_BelowAutoBandSkipsEvaluation(t *testing.T) {
	a := threadWithConcepts("a", []string{"x"})
	b := threadWithConcepts("b", []string{"y"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b"}
	bridges := &fakeBridges{byID: map[string]*memory.Bridge{"br1": bridge}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: `{"decision":"merge","survivor":"A"}`}

	ev := newEvaluator(threads, &fakeMessages{}, bridges, executor, provider)
	err := ev.Evaluate(context.Background(), "br1")
	require.NoError(t, err)
	require.Empty(t, executor.calls)
	require.Empty(t, bridges.updated)
}

func TestEvaluate_MergeDecisionInvokesExecutor(t *testing.T) {
	a := threadWithConcepts("a", []string{"x", "y", "z"})
	b := threadWithConcepts("b", []string{"x", "y", "z"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b"}
	bridges := &fakeBridges{byID: map[string]*memory.Bridge{"br1": bridge}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: `{"decision":"merge","survivor":"A","title":"merged","summary":"sum"}`}

	ev := newEvaluator(threads, &fakeMessages{}, bridges, executor, provider)
	err := ev.Evaluate(context.Background(), "br1")
	require.NoError(t, err)
	require.Equal(t, []string{"a<-b"}, executor.calls)
	require.Equal(t, "merged", a.Title)
	require.Equal(t, "sum", a.Summary)
}

func TestEvaluate_RejectDecisionAppliesPenalty(t *testing.T) {
	a := threadWithConcepts("a", []string{"x", "y", "z"})
	b := threadWithConcepts("b", []string{"x", "y", "z"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b", Confidence: 0.9}
	bridges := &fakeBridges{byID: map[string]*memory.Bridge{"br1": bridge}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: `{"decision":"reject","reason":"different topics"}`}

	ev := newEvaluator(threads, &fakeMessages{}, bridges, executor, provider)
	err := ev.Evaluate(context.Background(), "br1")
	require.NoError(t, err)
	require.Empty(t, executor.calls)
	require.Len(t, bridges.updated, 1)
	require.InDelta(t, 0.7, bridge.Confidence, 0.0001)
	require.Contains(t, bridge.Reason, "merge_rejected:different topics")
}

func TestEvaluate_NilProviderDefaultsToReject(t *testing.T) {
	a := threadWithConcepts("a", []string{"x", "y", "z"})
	b := threadWithConcepts("b", []string{"x", "y", "z"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b", Confidence: 0.5}
	bridges := &fakeBridges{byID: map[string]*memory.Bridge{"br1": bridge}}
	executor := &fakeExecutor{}

	ev := New(threads, &fakeMessages{}, bridges, executor, nil, fakeEmbedder{}, nil)
	err := ev.Evaluate(context.Background(), "br1")
	require.NoError(t, err)
	require.Contains(t, bridge.Reason, "no_llm_configured")
}

func TestEvaluate_UnparseableReplyDefaultsToReject(t *testing.T) {
	a := threadWithConcepts("a", []string{"x", "y", "z"})
	b := threadWithConcepts("b", []string{"x", "y", "z"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b"}
	bridges := &fakeBridges{byID: map[string]*memory.Bridge{"br1": bridge}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: "not json at all"}

	ev := newEvaluator(threads, &fakeMessages{}, bridges, executor, provider)
	err := ev.Evaluate(context.Background(), "br1")
	require.NoError(t, err)
	require.Contains(t, bridge.Reason, "unparseable_reply")
}

func TestForceMerge_BypassesAutoBandButHonorsReject(t *testing.T) {
	a := threadWithConcepts("a", []string{"x"})
	b := threadWithConcepts("b", []string{"y"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: `{"decision":"reject","reason":"unrelated"}`}

	ev := newEvaluator(threads, &fakeMessages{}, &fakeBridges{byID: map[string]*memory.Bridge{}}, executor, provider)
	err := ev.ForceMerge(context.Background(), "a", "b")
	require.Error(t, err)
	require.Empty(t, executor.calls)
}

func TestForceMerge_MergeDecisionSurvivorB(t *testing.T) {
	a := threadWithConcepts("a", []string{"x"})
	b := threadWithConcepts("b", []string{"y"})
	threads := &fakeThreads{byID: map[string]*memory.Thread{"a": a, "b": b}}
	executor := &fakeExecutor{}
	provider := &fakeProvider{reply: `{"decision":"merge","survivor":"B"}`}

	ev := newEvaluator(threads, &fakeMessages{}, &fakeBridges{byID: map[string]*memory.Bridge{}}, executor, provider)
	err := ev.ForceMerge(context.Background(), "a", "b")
	require.NoError(t, err)
	require.Equal(t, []string{"b<-a"}, executor.calls)
}

func TestBuildPrompt_TruncatesLongMessagesAndSamples(t *testing.T) {
	a := threadWithConcepts("a", []string{"x"})
	b := threadWithConcepts("b", []string{"y"})

	messages := make([]memory.ThreadMessage, 0, 10)
	for i := 0; i < 10; i++ {
		messages = append(messages, memory.ThreadMessage{ID: "m", Content: "hello world"})
	}
	longMsg := memory.ThreadMessage{ID: "long", Content: strings.Repeat("z", MaxMessageExcerptLen+100)}
	bMessages := append([]memory.ThreadMessage{longMsg}, messages...)

	prompt := BuildPrompt(a, b, messages, bMessages)
	require.Contains(t, prompt, "Thread A:")
	require.Contains(t, prompt, "Thread B:")
	require.LessOrEqual(t, len(prompt), MaxPromptLen)
}

func TestSampleMessages_ReturnsFirstTwoAndLastThree(t *testing.T) {
	messages := make([]memory.ThreadMessage, 0, 8)
	for i := 0; i < 8; i++ {
		messages = append(messages, memory.ThreadMessage{ID: string(rune('a' + i))})
	}
	sample := sampleMessages(messages)
	require.Len(t, sample, 5)
	require.Equal(t, "a", sample[0].ID)
	require.Equal(t, "b", sample[1].ID)
	require.Equal(t, "f", sample[2].ID)
	require.Equal(t, "g", sample[3].ID)
	require.Equal(t, "h", sample[4].ID)
}

func TestSampleMessages_ShortSliceReturnedUnchanged(t *testing.T) {
	messages := []memory.ThreadMessage{{ID: "a"}, {ID: "b"}}
	require.Equal(t, messages, sampleMessages(messages))
}

func TestConsolidateAfterMerge_UnionsBagsAndTakesMaxWeight(t *testing.T) {
	survivor := &memory.Thread{ID: "s", Topics: []string{"go"}, Labels: []string{"bug"}, Concepts: []string{"concurrency"}, Weight: 0.3}
	absorbed := &memory.Thread{ID: "ab", Topics: []string{"rust"}, Labels: []string{"bug"}, Concepts: []string{"memory"}, Weight: 0.8}

	ConsolidateAfterMerge(survivor, absorbed, Decision{Title: "new title", Summary: "new summary"})

	require.ElementsMatch(t, []string{"go", "rust"}, survivor.Topics)
	require.ElementsMatch(t, []string{"bug"}, survivor.Labels)
	require.ElementsMatch(t, []string{"concurrency", "memory"}, survivor.Concepts)
	require.Equal(t, 0.8, survivor.Weight)
	require.Equal(t, "new title", survivor.Title)
	require.Equal(t, "new summary", survivor.Summary)
}

func TestConsolidateAfterMerge_KeepsExistingTitleWhenDecisionBlank(t *testing.T) {
	survivor := &memory.Thread{ID: "s", Title: "original", Weight: 0.5}
	absorbed := &memory.Thread{ID: "ab", Weight: 0.1}

	ConsolidateAfterMerge(survivor, absorbed, Decision{})
	require.Equal(t, "original", survivor.Title)
	require.Equal(t, 0.5, survivor.Weight)
}

func TestApplyRejectPenalty_FloorsAtZero(t *testing.T) {
	b := &memory.Bridge{Confidence: 0.1, Reason: "gossip:concept_overlap"}
	ApplyRejectPenalty(b, "low_signal")
	require.Equal(t, 0.0, b.Confidence)
	require.Equal(t, "gossip:concept_overlap;merge_rejected:low_signal", b.Reason)
}

func TestOverlapScore_ComputesRatioAndRichness(t *testing.T) {
	shared, ratio, richness := overlapScore([]string{"a", "b", "c"}, []string{"A", "B", "d"})
	require.Equal(t, 2, shared)
	require.InDelta(t, 2.0/3.0, ratio, 0.0001)
	require.InDelta(t, 0.4, richness, 0.0001)
}

func TestExtractJSONObject_StripsSurroundingProse(t *testing.T) {
	raw := "Here is the answer:\n```json\n{\"decision\":\"merge\"}\n```\nThanks"
	require.Equal(t, `{"decision":"merge"}`, extractJSONObject(raw))
}

func TestExtractJSONObject_NoBracesReturnsEmptyObject(t *testing.T) {
	require.Equal(t, "{}", extractJSONObject("no json here"))
}
