package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
)

func testThread(id string) *memory.Thread {
	now := time.Now().UTC().Truncate(time.Second)
	return &memory.Thread{
		ID:         id,
		Title:      "Investigate flaky retry test",
		Status:     memory.StatusActive,
		Origin:     memory.OriginPrompt,
		Weight:     0.5,
		Importance: 0.3,
		CreatedAt:  now,
		LastActive: now,
		Topics:     []string{"testing", "retries"},
		Labels:     []string{"bug"},
		Concepts:   []string{"flaky", "ci"},
	}
}

func TestThreadRepository_CreateGet(t *testing.T) {
	db := newTestProjectDB(t)
	repo := NewThreadRepository(db)
	ctx := context.Background()

	th := testThread("t1")
	require.NoError(t, repo.Create(ctx, th))

	got, err := repo.Get(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, th.Title, got.Title)
	require.Equal(t, th.Status, got.Status)
	require.ElementsMatch(t, th.Topics, got.Topics)
	require.ElementsMatch(t, th.Concepts, got.Concepts)
}

func TestThreadRepository_Get_NotFound(t *testing.T) {
	db := newTestProjectDB(t)
	repo := NewThreadRepository(db)

	_, err := repo.Get(context.Background(), "missing")
	require.Error(t, err)
	var merr *memerr.Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, memerr.KindNotFound, merr.Kind)
}

func TestThreadRepository_Update_OptimisticConcurrency(t *testing.T) {
	db := newTestProjectDB(t)
	repo := NewThreadRepository(db)
	ctx := context.Background()

	th := testThread("t1")
	require.NoError(t, repo.Create(ctx, th))

	got, tick, err := repo.GetWithTick(ctx, "t1")
	require.NoError(t, err)
	got.Title = "Updated title"
	require.NoError(t, repo.Update(ctx, got, tick))

	// Reusing the stale tick must fail rather than silently clobber.
	got.Title = "Conflicting title"
	err = repo.Update(ctx, got, tick)
	require.Error(t, err)
}

func TestThreadRepository_ListActive(t *testing.T) {
	db := newTestProjectDB(t)
	repo := NewThreadRepository(db)
	ctx := context.Background()

	active := testThread("active")
	require.NoError(t, repo.Create(ctx, active))

	suspended := testThread("suspended")
	suspended.Status = memory.StatusSuspended
	require.NoError(t, repo.Create(ctx, suspended))

	got, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "active", got[0].ID)
}

func TestThreadRepository_Delete(t *testing.T) {
	db := newTestProjectDB(t)
	repo := NewThreadRepository(db)
	ctx := context.Background()

	th := testThread("t1")
	require.NoError(t, repo.Create(ctx, th))
	require.NoError(t, repo.Delete(ctx, "t1"))

	_, err := repo.Get(ctx, "t1")
	require.Error(t, err)
}
