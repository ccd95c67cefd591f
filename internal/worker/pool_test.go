package worker_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rpggio/memengine/internal/worker"
)

func TestRunStopsOnFirstError(t *testing.T) {
	p := worker.New(2)
	var ran atomic.Int32
	boom := errors.New("boom")

	err := p.Run(context.Background(),
		func(ctx context.Context) error { ran.Add(1); return boom },
		func(ctx context.Context) error {
			<-ctx.Done()
			ran.Add(1)
			return ctx.Err()
		},
	)
	require.ErrorIs(t, err, boom)
}

func TestRunBestEffortRunsEveryTask(t *testing.T) {
	p := worker.New(3)
	boom := errors.New("boom")

	errs := p.RunBestEffort(context.Background(),
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error { return nil },
	)

	require.Len(t, errs, 3)
	require.NoError(t, errs[0])
	require.ErrorIs(t, errs[1], boom)
	require.NoError(t, errs[2])
}

func TestNewClampsNonPositiveConcurrency(t *testing.T) {
	p := worker.New(0)
	var count atomic.Int32
	err := p.Run(context.Background(),
		func(ctx context.Context) error { count.Add(1); return nil },
		func(ctx context.Context) error { count.Add(1); return nil },
	)
	require.NoError(t, err)
	require.Equal(t, int32(2), count.Load())
}
