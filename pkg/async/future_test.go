package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LazyCorpz/Signal-Server/pkg/async"
)

func TestAsync(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	future := async.Async(ctx, 21, func(_ context.Context, n int) (int, error) {
		time.Sleep(20 * time.Millisecond)
		return n * 2, nil
	})

	v, err := future.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.True(t, future.IsComplete())

	// Await is repeatable
	v, err = future.Await()
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestAsync_Error(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	future := async.Async(context.Background(), "x", func(context.Context, string) (bool, error) {
		return false, boom
	})

	_, err := future.Await()
	assert.ErrorIs(t, err, boom)
}

func TestAsync_CanceledContextSkipsCall(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var called atomic.Bool
	future := async.Async(ctx, 1, func(context.Context, int) (int, error) {
		called.Store(true)
		return 1, nil
	})

	_, err := future.Await()
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called.Load())
}

func TestAsync_AwaitWithTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})

	future := async.Async(context.Background(), 0, func(context.Context, int) (string, error) {
		<-release
		return "done", nil
	})

	_, err := future.AwaitWithTimeout(10 * time.Millisecond)
	assert.ErrorIs(t, err, async.ErrTimeout)
	assert.False(t, future.IsComplete())

	close(release)
	<-future.Done()

	v, err := future.AwaitWithTimeout(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "done", v)
}

func TestExec(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("boom")

	ok := async.Exec(ctx, 42, func(_ context.Context, n int) error {
		if n != 42 {
			return errors.New("unexpected number")
		}
		return nil
	})
	failed := async.Exec(ctx, "x", func(context.Context, string) error {
		time.Sleep(10 * time.Millisecond)
		return boom
	})

	require.NoError(t, ok.Await())
	assert.ErrorIs(t, failed.Await(), boom)
	assert.ErrorIs(t, async.ExecAll(ok, failed), boom)
	assert.NoError(t, async.ExecAll(ok))
}

func TestExec_AwaitWithTimeout(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})

	future := async.Exec(context.Background(), 0, func(context.Context, int) error {
		<-release
		return nil
	})

	assert.ErrorIs(t, future.AwaitWithTimeout(5*time.Millisecond), async.ErrTimeout)
	close(release)
	<-future.Done()
	assert.True(t, future.IsComplete())
	assert.NoError(t, future.AwaitWithTimeout(time.Second))
}
