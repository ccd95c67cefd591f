package decay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/decay"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/memory"
)

type fakeThreads struct {
	active    []*memory.Thread
	suspended []*memory.Thread
	byID      map[string]*memory.Thread
	ticks     map[string]int64
	updated   []*memory.Thread
}

func newFakeThreads(threads ...*memory.Thread) *fakeThreads {
	f := &fakeThreads{byID: map[string]*memory.Thread{}, ticks: map[string]int64{}}
	for _, th := range threads {
		f.byID[th.ID] = th
		f.ticks[th.ID] = 1
		switch th.Status {
		case memory.StatusActive:
			f.active = append(f.active, th)
		case memory.StatusSuspended:
			f.suspended = append(f.suspended, th)
		}
	}
	return f
}

func (f *fakeThreads) ListActive(ctx context.Context) ([]*memory.Thread, error)    { return f.active, nil }
func (f *fakeThreads) ListSuspended(ctx context.Context) ([]*memory.Thread, error) { return f.suspended, nil }
func (f *fakeThreads) GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error) {
	th := f.byID[id]
	cp := *th
	return &cp, f.ticks[id], nil
}
func (f *fakeThreads) Update(ctx context.Context, th *memory.Thread, expectedTick int64) error {
	f.byID[th.ID] = th
	f.ticks[th.ID] = expectedTick + 1
	f.updated = append(f.updated, th)
	return nil
}

type fakeBridges struct {
	all     []*memory.Bridge
	updated []*memory.Bridge
	purged  int64
}

func (f *fakeBridges) ListAll(ctx context.Context) ([]*memory.Bridge, error) { return f.all, nil }
func (f *fakeBridges) Update(ctx context.Context, b *memory.Bridge) error {
	f.updated = append(f.updated, b)
	return nil
}
func (f *fakeBridges) PurgeOrphans(ctx context.Context) (int64, error) { return f.purged, nil }

func TestDecayerSuspendsLowWeightThread(t *testing.T) {
	th := &memory.Thread{
		ID:         "t1",
		Status:     memory.StatusActive,
		Weight:     0.2,
		Importance: 0.5,
		LastActive: time.Now().Add(-30 * 24 * time.Hour),
	}
	threads := newFakeThreads(th)
	bridges := &fakeBridges{}
	d := decay.NewDecayer(threads, bridges, nil)

	require.NoError(t, d.Run(context.Background()))
	require.Len(t, threads.updated, 1)
	require.Equal(t, memory.StatusSuspended, threads.updated[0].Status)
	require.Less(t, threads.updated[0].Weight, 0.1)
}

func TestDecayerSkipsNegligibleDelta(t *testing.T) {
	th := &memory.Thread{
		ID:         "t1",
		Status:     memory.StatusActive,
		Weight:     0.8,
		Importance: 0.9,
		LastActive: time.Now().Add(-1 * time.Minute),
	}
	threads := newFakeThreads(th)
	bridges := &fakeBridges{}
	d := decay.NewDecayer(threads, bridges, nil)

	require.NoError(t, d.Run(context.Background()))
	require.Empty(t, threads.updated)
}

func TestDecayerMarksBridgeInvalid(t *testing.T) {
	b := &memory.Bridge{
		ID:        "b1",
		Status:    memory.BridgeActive,
		Weight:    0.1,
		CreatedAt: time.Now().Add(-60 * 24 * time.Hour),
	}
	threads := newFakeThreads()
	bridges := &fakeBridges{all: []*memory.Bridge{b}}
	d := decay.NewDecayer(threads, bridges, nil)

	require.NoError(t, d.Run(context.Background()))
	require.Len(t, bridges.updated, 1)
	require.Equal(t, memory.BridgeInvalid, bridges.updated[0].Status)
}

func TestArchiverArchivesStaleSuspendedThread(t *testing.T) {
	th := &memory.Thread{
		ID:         "t1",
		Status:     memory.StatusSuspended,
		LastActive: time.Now().Add(-200 * time.Hour),
	}
	threads := newFakeThreads(th)
	cfg := guardianconfig.DecayConfig{ArchiveAfterHours: 168}
	a := decay.NewArchiver(threads, cfg)

	require.NoError(t, a.Run(context.Background()))
	require.Len(t, threads.updated, 1)
	require.Equal(t, memory.StatusArchived, threads.updated[0].Status)
}

func TestArchiverLeavesRecentSuspendedThreadAlone(t *testing.T) {
	th := &memory.Thread{
		ID:         "t1",
		Status:     memory.StatusSuspended,
		LastActive: time.Now().Add(-1 * time.Hour),
	}
	threads := newFakeThreads(th)
	cfg := guardianconfig.DecayConfig{ArchiveAfterHours: 168}
	a := decay.NewArchiver(threads, cfg)

	require.NoError(t, a.Run(context.Background()))
	require.Empty(t, threads.updated)
}
