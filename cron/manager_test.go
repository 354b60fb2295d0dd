package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social-bot/logger"
	"github.com/saiset-co/sai-social-bot/types"
)

func newTestManager(t *testing.T, jobTimeout time.Duration) types.CronManager {
	t.Helper()

	manager, err := NewManager(context.Background(), logger.NewZapWrapper(zap.NewNop()), nil, &types.CronConfig{
		Timezone:   "UTC",
		JobTimeout: jobTimeout,
	})
	require.NoError(t, err)

	return manager
}

func TestAddValidatesJobRegistration(t *testing.T) {
	manager := newTestManager(t, time.Minute)

	noop := func(context.Context) {}

	require.ErrorIs(t, manager.Add("", "@every 1s", noop), types.ErrCronJobNameIsEmpty)
	require.ErrorIs(t, manager.Add("job", "", noop), types.ErrCronExpressionInvalid)
	require.ErrorIs(t, manager.Add("job", "@every 1s", nil), types.ErrCronJobIsNil)

	require.NoError(t, manager.Add("job", "@every 1s", noop))
	require.ErrorIs(t, manager.Add("job", "@every 1s", noop), types.ErrCronJobExists)
}

func TestSlowJobRunsNeverOverlap(t *testing.T) {
	manager := newTestManager(t, 100*time.Millisecond)

	var active, peak, runs int32

	err := manager.Add("slow", "@every 1s", func(ctx context.Context) {
		cur := atomic.AddInt32(&active, 1)
		defer atomic.AddInt32(&active, -1)

		for {
			seen := atomic.LoadInt32(&peak)
			if cur <= seen || atomic.CompareAndSwapInt32(&peak, seen, cur) {
				break
			}
		}

		atomic.AddInt32(&runs, 1)

		// Outlive the job timeout so only the wrapper's blocking keeps
		// runs apart.
		time.Sleep(1500 * time.Millisecond)
	})
	require.NoError(t, err)

	require.NoError(t, manager.Start())
	time.Sleep(3200 * time.Millisecond)
	require.NoError(t, manager.Stop())

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
	require.Equal(t, int32(1), atomic.LoadInt32(&peak))
}

func TestJobContextExpiresAtTimeout(t *testing.T) {
	manager := newTestManager(t, 100*time.Millisecond)

	canceled := make(chan struct{}, 1)

	err := manager.Add("waits", "@every 1s", func(ctx context.Context) {
		<-ctx.Done()
		select {
		case canceled <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, manager.Start())
	defer func() {
		require.NoError(t, manager.Stop())
	}()

	select {
	case <-canceled:
	case <-time.After(3 * time.Second):
		t.Fatal("job context was not canceled at the timeout")
	}
}

func TestPanickingJobDoesNotKillScheduler(t *testing.T) {
	manager := newTestManager(t, time.Minute)

	var runs int32

	err := manager.Add("panics", "@every 1s", func(ctx context.Context) {
		atomic.AddInt32(&runs, 1)
		panic("boom")
	})
	require.NoError(t, err)

	require.NoError(t, manager.Start())
	time.Sleep(2200 * time.Millisecond)
	require.NoError(t, manager.Stop())

	require.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(2))
}
