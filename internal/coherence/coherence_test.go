package coherence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpggio/memengine/internal/memory"
	"github.com/stretchr/testify/require"
)

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

type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 2 }

func TestCheck_LLMDisabledUsesEmbeddingFallback(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"parent context": {1, 0},
		"new content":    {1, 0},
	}}
	checker := New(&fakeProvider{reply: `{"score":0.1}`}, embedder, false, nil)
	result := checker.Check(context.Background(), "parent context", "new content", []string{"bug"})
	require.InDelta(t, 1.0, result.Score, 0.0001)
	require.Equal(t, "embedding similarity (LLM fallback)", result.Reason)
	require.Equal(t, []string{"bug"}, result.UpdatedLabels)
}

func TestCheck_NilProviderUsesEmbeddingFallback(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"a": {1, 0},
		"b": {0, 1},
	}}
	checker := New(nil, embedder, true, nil)
	result := checker.Check(context.Background(), "a", "b", nil)
	require.Equal(t, 0.0, result.Score)
}

func TestCheck_LLMSuccessParsesReply(t *testing.T) {
	provider := &fakeProvider{reply: `{"score":0.85,"reason":"same topic","updated_labels":["ci","bug"]}`}
	checker := New(provider, &fakeEmbedder{}, true, nil)
	result := checker.Check(context.Background(), "ctx", "content", []string{"ci"})
	require.Equal(t, 0.85, result.Score)
	require.Equal(t, "same topic", result.Reason)
	require.Equal(t, []string{"ci", "bug"}, result.UpdatedLabels)
}

func TestCheck_LLMFailureFallsBackToEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"ctx":     {1, 0},
		"content": {1, 0},
	}}
	provider := &fakeProvider{err: errors.New("timeout")}
	checker := New(provider, embedder, true, nil)
	result := checker.Check(context.Background(), "ctx", "content", nil)
	require.InDelta(t, 1.0, result.Score, 0.0001)
	require.Equal(t, "embedding similarity (LLM fallback)", result.Reason)
}

func TestCheck_UnparseableLLMReplyFallsBackToEmbedding(t *testing.T) {
	provider := &fakeProvider{reply: "not json"}
	checker := New(provider, &fakeEmbedder{}, true, nil)
	result := checker.Check(context.Background(), "ctx", "content", nil)
	require.Equal(t, "embedding similarity (LLM fallback)", result.Reason)
}

func TestDetermineAction(t *testing.T) {
	require.Equal(t, ActionChild, DetermineAction(0.7, 0.6, 0.3))
	require.Equal(t, ActionOrphan, DetermineAction(0.4, 0.6, 0.3))
	require.Equal(t, ActionForget, DetermineAction(0.1, 0.6, 0.3))
}

type fakeThreads struct {
	active []*memory.Thread
	err    error
}

func (f *fakeThreads) ListActive(ctx context.Context) ([]*memory.Thread, error) {
	return f.active, f.err
}

func TestParentHint_NoActiveThreadsReturnsNil(t *testing.T) {
	hint, err := ParentHint(context.Background(), New(nil, &fakeEmbedder{}, false, nil), &fakeThreads{}, 0.6, 0.3, "content")
	require.NoError(t, err)
	require.Nil(t, hint)
}

func TestParentHint_PicksMostRecentlyActiveAndReturnsIDWhenChild(t *testing.T) {
	now := time.Now()
	older := &memory.Thread{ID: "older", Title: "t1", LastActive: now.Add(-time.Hour)}
	newer := &memory.Thread{ID: "newer", Title: "t2", LastActive: now}
	threads := &fakeThreads{active: []*memory.Thread{older, newer}}

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"t2\n":    {1, 0},
		"content": {1, 0},
	}}
	checker := New(nil, embedder, false, nil)

	hint, err := ParentHint(context.Background(), checker, threads, 0.6, 0.3, "content")
	require.NoError(t, err)
	require.NotNil(t, hint)
	require.Equal(t, "newer", *hint)
}

func TestParentHint_BelowChildThresholdReturnsNil(t *testing.T) {
	now := time.Now()
	parent := &memory.Thread{ID: "p1", Title: "t1", LastActive: now}
	threads := &fakeThreads{active: []*memory.Thread{parent}}

	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"t1\n":    {1, 0},
		"content": {0, 1},
	}}
	checker := New(nil, embedder, false, nil)

	hint, err := ParentHint(context.Background(), checker, threads, 0.6, 0.3, "content")
	require.NoError(t, err)
	require.Nil(t, hint)
}

func TestParentHint_PropagatesRepositoryError(t *testing.T) {
	threads := &fakeThreads{err: errors.New("db down")}
	_, err := ParentHint(context.Background(), New(nil, &fakeEmbedder{}, false, nil), threads, 0.6, 0.3, "content")
	require.Error(t, err)
}
