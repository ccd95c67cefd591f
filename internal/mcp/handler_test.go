package mcp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/embed"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/mcp"
	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
	"github.com/rpggio/memengine/internal/merge"
)

type fakeThreads struct {
	byID  map[string]*memory.Thread
	ticks map[string]int64
}

func newFakeThreads(threads ...*memory.Thread) *fakeThreads {
	f := &fakeThreads{byID: map[string]*memory.Thread{}, ticks: map[string]int64{}}
	for _, th := range threads {
		f.byID[th.ID] = th
		f.ticks[th.ID] = 1
	}
	return f
}

func (f *fakeThreads) GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error) {
	th, ok := f.byID[id]
	if !ok {
		return nil, 0, memerr.NotFound("Thread", id)
	}
	cp := *th
	return &cp, f.ticks[id], nil
}
func (f *fakeThreads) Update(ctx context.Context, th *memory.Thread, expectedTick int64) error {
	f.byID[th.ID] = th
	f.ticks[th.ID] = expectedTick + 1
	return nil
}
func (f *fakeThreads) ListActive(ctx context.Context) ([]*memory.Thread, error) {
	var out []*memory.Thread
	for _, th := range f.byID {
		if th.Status == memory.StatusActive {
			out = append(out, th)
		}
	}
	return out, nil
}
func (f *fakeThreads) ListAll(ctx context.Context) ([]*memory.Thread, error) {
	var out []*memory.Thread
	for _, th := range f.byID {
		out = append(out, th)
	}
	return out, nil
}

type fakeBridges struct{ purged int64 }

func (f *fakeBridges) PurgeOrphans(ctx context.Context) (int64, error) { return f.purged, nil }
func (f *fakeBridges) ListForThread(ctx context.Context, id string) ([]*memory.Bridge, error) {
	return nil, nil
}
func (f *fakeBridges) Update(ctx context.Context, b *memory.Bridge) error { return nil }

type noopIndex struct{}

func (noopIndex) Lookup(terms []string) []string       { return nil }
func (noopIndex) ExtractMatching(text string) []string { return nil }

func newRetriever(threads *fakeThreads, bridges *fakeBridges) *engram.Retriever {
	return engram.New(threads, bridges, noopIndex{}, noopIndex{}, embed.Off{}, nil, nil, 5, 3, 200)
}

type rejectProvider struct{}

func (rejectProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	return `{"decision":"reject","reason":"test"}`, nil
}

type noopExecutor struct{ called bool }

func (e *noopExecutor) Execute(ctx context.Context, survivor *memory.Thread, absorbedID string, newEmbedding []float32) error {
	e.called = true
	return nil
}

type noopMessages struct{}

func (noopMessages) ListByThread(ctx context.Context, threadID string) ([]memory.ThreadMessage, error) {
	return nil, nil
}

func TestThreadSuspendAndReactivate(t *testing.T) {
	th := &memory.Thread{ID: "t1", Status: memory.StatusActive}
	threads := newFakeThreads(th)
	bridges := &fakeBridges{}
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), nil, nil)

	result, err := h.ThreadSuspend(context.Background(), mcp.ThreadSuspendParams{ThreadID: "t1"})
	require.NoError(t, err)
	require.Equal(t, "suspended", result.Status)

	result, err = h.ThreadSuspend(context.Background(), mcp.ThreadSuspendParams{ThreadID: "t1", Reactivate: true})
	require.NoError(t, err)
	require.Equal(t, "active", result.Status)
}

func TestThreadSuspendUnknownThreadMapsNotFound(t *testing.T) {
	threads := newFakeThreads()
	bridges := &fakeBridges{}
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), nil, nil)

	_, err := h.ThreadSuspend(context.Background(), mcp.ThreadSuspendParams{ThreadID: "missing"})
	require.Error(t, err)
	apiErr, ok := err.(*mcp.APIError)
	require.True(t, ok)
	require.Equal(t, "NOT_FOUND", apiErr.Code)
}

func TestLabelAppendsAndNormalizes(t *testing.T) {
	th := &memory.Thread{ID: "t1", Status: memory.StatusActive, Labels: []string{"alpha"}}
	threads := newFakeThreads(th)
	bridges := &fakeBridges{}
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), nil, nil)

	_, err := h.Label(context.Background(), mcp.LabelParams{ThreadID: "t1", Labels: []string{"Alpha", "beta"}})
	require.NoError(t, err)
	stored, _, _ := threads.GetWithTick(context.Background(), "t1")
	require.ElementsMatch(t, []string{"alpha", "beta"}, stored.Labels)
}

func TestBridgeScanOrphans(t *testing.T) {
	threads := newFakeThreads()
	bridges := &fakeBridges{purged: 3}
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), nil, nil)

	result, err := h.BridgeScanOrphans(context.Background(), struct{}{})
	require.NoError(t, err)
	require.Equal(t, int64(3), result.Purged)
}

func TestMergeForceMergeRejectedByArbiter(t *testing.T) {
	a := &memory.Thread{ID: "a", Status: memory.StatusActive}
	b := &memory.Thread{ID: "b", Status: memory.StatusActive}
	threads := newFakeThreads(a, b)
	bridges := &fakeBridges{}
	evaluator := merge.New(threads, noopMessages{}, nil, &noopExecutor{}, rejectProvider{}, embed.Off{}, nil)
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), evaluator, nil)

	_, err := h.Merge(context.Background(), mcp.MergeParams{ThreadAID: "a", ThreadBID: "b"})
	require.Error(t, err)
}

func TestBackupNotConfigured(t *testing.T) {
	threads := newFakeThreads()
	bridges := &fakeBridges{}
	h := mcp.NewHandler(threads, bridges, newRetriever(threads, bridges), nil, nil)

	_, err := h.Backup(context.Background(), mcp.BackupParams{})
	require.Error(t, err)
}
