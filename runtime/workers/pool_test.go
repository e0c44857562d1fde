package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"whiteboard/mocks"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHandlerPool_Panic_Only_Ends_That_Worker(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	panicking := mocks.NewMockWorker(ctrl)
	healthy := mocks.NewMockWorker(ctrl)
	var ran atomic.Bool

	panicking.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) error { panic("boom") })
	healthy.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) error {
		ran.Store(true)
		return nil
	})

	pool := NewHandlerPool(log, 2)
	pool.Submit(ctx, panicking)
	pool.Submit(ctx, healthy)
	pool.Wait()

	req.True(ran.Load())
	req.Zero(pool.Active())
}

func TestHandlerPool_Submit_Blocks_At_Ceiling(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	ctx := context.Background()

	release := make(chan struct{})
	blocking := mocks.NewMockWorker(ctrl)
	blocking.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) error {
		<-release
		return nil
	}).Times(2)

	// Given a pool of one slot already busy
	pool := NewHandlerPool(log, 1)
	pool.Submit(ctx, blocking)

	// When a second worker is submitted
	submitted := make(chan struct{})
	go func() {
		pool.Submit(ctx, blocking)
		close(submitted)
	}()

	// Then the submission waits for a free slot instead of failing
	select {
	case <-submitted:
		req.Fail("Submit should block while the pool is full")
	case <-time.After(100 * time.Millisecond):
	}
	req.Equal(1, pool.Active())

	close(release)
	select {
	case <-submitted:
	case <-time.After(time.Second):
		req.Fail("Submit should resume once a slot is released")
	}
	pool.Wait()
}
