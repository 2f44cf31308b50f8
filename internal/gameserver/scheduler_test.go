package gameserver

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSchedulerRunsTasksInOrder(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		scheduler.Submit(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, order, 10)
	for i, got := range order {
		assert.Equal(t, i, got)
	}

	cancel()
	scheduler.Wait()
}

func TestSchedulerExecuteSync(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler.Start(ctx)

	var ran bool
	err := scheduler.ExecuteSync(context.Background(), func() { ran = true })
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestSchedulerExecuteSyncTimeout(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	// Never started: the task cannot run.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := scheduler.ExecuteSync(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	scheduler.Start(ctx)

	scheduler.Submit(func() { panic("boom") })

	var ran bool
	require.NoError(t, scheduler.ExecuteSync(context.Background(), func() { ran = true }))
	assert.True(t, ran)

	cancel()
	scheduler.Wait()
}

func TestSchedulerDrainsOnShutdown(t *testing.T) {
	scheduler := NewScheduler(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		scheduler.Submit(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	scheduler.Start(ctx)
	cancel()
	scheduler.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 50, count)
}
