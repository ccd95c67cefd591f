package engram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/memory"
)

var errNotFound = errors.New("not found")

type fakeThreadRepo struct {
	byID map[string]*memory.Thread
	all  []*memory.Thread
}

func (f *fakeThreadRepo) ListActive(ctx context.Context) ([]*memory.Thread, error) { return f.all, nil }
func (f *fakeThreadRepo) ListAll(ctx context.Context) ([]*memory.Thread, error)    { return f.all, nil }
func (f *fakeThreadRepo) GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error) {
	th, ok := f.byID[id]
	if !ok {
		return nil, 0, errNotFound
	}
	return th, 1, nil
}
func (f *fakeThreadRepo) Update(ctx context.Context, th *memory.Thread, expectedTick int64) error {
	return nil
}

type fakeBridgeRepo struct {
	byThread map[string][]*memory.Bridge
	updated  []*memory.Bridge
}

func (f *fakeBridgeRepo) ListForThread(ctx context.Context, threadID string) ([]*memory.Bridge, error) {
	return f.byThread[threadID], nil
}
func (f *fakeBridgeRepo) Update(ctx context.Context, b *memory.Bridge) error {
	f.updated = append(f.updated, b)
	return nil
}

type fakeIndex struct {
	lookup map[string][]string
}

func (f *fakeIndex) Lookup(terms []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, term := range terms {
		for _, id := range f.lookup[term] {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}
func (f *fakeIndex) ExtractMatching(text string) []string {
	var out []string
	for term := range f.lookup {
		out = append(out, term)
	}
	return out
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) { return nil, nil }
func (fakeEmbedder) Dimensions() int                                           { return 0 }

func TestRetriever_GetRelevantContext_FallsBackToActiveList(t *testing.T) {
	th := &memory.Thread{ID: "t1", Status: memory.StatusActive, Title: "ci flake"}
	threads := &fakeThreadRepo{all: []*memory.Thread{th}, byID: map[string]*memory.Thread{"t1": th}}
	bridges := &fakeBridgeRepo{byThread: map[string][]*memory.Bridge{}}
	emptyIndex := &fakeIndex{lookup: map[string][]string{}}

	r := New(threads, bridges, emptyIndex, emptyIndex, fakeEmbedder{}, DefaultValidators(0.5), nil, 5, 2, 50)

	result, err := r.GetRelevantContext(context.Background(), "ci is flaky again", nil, 10)
	require.NoError(t, err)
	require.NotEmpty(t, result)
}

func TestRetriever_Search_UsesTextFallback(t *testing.T) {
	match := &memory.Thread{ID: "t1", Title: "build pipeline flake"}
	other := &memory.Thread{ID: "t2", Title: "unrelated topic"}
	threads := &fakeThreadRepo{all: []*memory.Thread{match, other}}
	bridges := &fakeBridgeRepo{byThread: map[string][]*memory.Bridge{}}
	emptyIndex := &fakeIndex{lookup: map[string][]string{}}

	r := New(threads, bridges, emptyIndex, emptyIndex, fakeEmbedder{}, DefaultValidators(0.5), nil, 1, 1, 50)

	result, err := r.Search(context.Background(), "flake", 10)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "t1", result[0].ID)
}

func TestRetriever_ReinforceUpdatesSharedBridge(t *testing.T) {
	a := &memory.Thread{ID: "a", Status: memory.StatusActive}
	b := &memory.Thread{ID: "b", Status: memory.StatusActive}
	bridge := &memory.Bridge{ID: "br1", SourceID: "a", TargetID: "b", Status: memory.BridgeActive}

	threads := &fakeThreadRepo{all: []*memory.Thread{a, b}, byID: map[string]*memory.Thread{"a": a, "b": b}}
	bridges := &fakeBridgeRepo{byThread: map[string][]*memory.Bridge{
		"a": {bridge},
		"b": {bridge},
	}}
	emptyIndex := &fakeIndex{lookup: map[string][]string{}}

	r := New(threads, bridges, emptyIndex, emptyIndex, fakeEmbedder{}, DefaultValidators(0.5), nil, 0, 0, 50)

	_, err := r.GetRelevantContext(context.Background(), "anything", nil, 10)
	require.NoError(t, err)
	require.Len(t, bridges.updated, 1)
	require.NotNil(t, bridges.updated[0].LastReinforced)
}
