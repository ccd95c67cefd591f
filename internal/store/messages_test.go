package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/memory"
)

func TestMessageRepository_AppendBumpsThreadActivity(t *testing.T) {
	db := newTestProjectDB(t)
	threads := NewThreadRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	th := testThread("t1")
	th.LastActive = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, threads.Create(ctx, th))

	msg := memory.NewThreadMessage("m1", "t1", "some captured output", "bash", memory.OriginCommand, time.Now())
	require.NoError(t, messages.Append(ctx, msg))

	got, err := threads.Get(ctx, "t1")
	require.NoError(t, err)
	require.True(t, got.LastActive.After(th.LastActive))
	require.Equal(t, int64(1), got.ActivationCount)
}

func TestMessageRepository_ListByThread(t *testing.T) {
	db := newTestProjectDB(t)
	threads := NewThreadRepository(db)
	messages := NewMessageRepository(db)
	ctx := context.Background()

	th := testThread("t1")
	require.NoError(t, threads.Create(ctx, th))

	require.NoError(t, messages.Append(ctx, memory.NewThreadMessage("m1", "t1", "first", "bash", memory.OriginCommand, time.Now())))
	require.NoError(t, messages.Append(ctx, memory.NewThreadMessage("m2", "t1", "second", "bash", memory.OriginCommand, time.Now())))

	got, err := messages.ListByThread(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}
