package broker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	published []Envelope
	polled    map[string][]Envelope
	acked     map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{polled: map[string][]Envelope{}, acked: map[string]string{}}
}

func (f *fakeStore) Publish(ctx context.Context, env Envelope) error {
	f.published = append(f.published, env)
	return nil
}

func (f *fakeStore) PollSince(ctx context.Context, consumer string, limit int) ([]Envelope, error) {
	all := f.published
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (f *fakeStore) Ack(ctx context.Context, consumer, lastID string) error {
	f.acked[consumer] = lastID
	return nil
}

func TestBroker_Publish_WritesDurableStoreWithoutRedis(t *testing.T) {
	store := newFakeStore()
	b := New(store, nil, nil)

	err := b.Publish(context.Background(), "hash1", Envelope{ID: "e1", From: "a", To: "b"})
	require.NoError(t, err)
	require.Len(t, store.published, 1)
	require.False(t, b.Enabled())
}

func TestBroker_Subscribe_RequiresRedis(t *testing.T) {
	b := New(newFakeStore(), nil, nil)
	_, _, err := b.Subscribe(context.Background(), "hash1")
	require.Error(t, err)
}

func TestBroker_PollSinceAndAck(t *testing.T) {
	store := newFakeStore()
	b := New(store, nil, nil)
	ctx := context.Background()

	require.NoError(t, b.Publish(ctx, "hash1", Envelope{ID: "e1"}))
	require.NoError(t, b.Publish(ctx, "hash1", Envelope{ID: "e2"}))

	envs, err := b.PollSince(ctx, "consumer-1", 10)
	require.NoError(t, err)
	require.Len(t, envs, 2)

	require.NoError(t, b.Ack(ctx, "consumer-1", "e2"))
	require.Equal(t, "e2", store.acked["consumer-1"])
}
