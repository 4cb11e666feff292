package xpool

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNew_Validation(t *testing.T) {
	_, err := New[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)

	_, err = New(0, 1, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(maxWorkers+1, 1, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidWorkers)

	_, err = New(1, 0, func(int) {})
	assert.ErrorIs(t, err, ErrInvalidQueueSize)
}

func TestPool_Basic(t *testing.T) {
	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(5)

	p, err := New(2, 10, func(int) {
		processed.Add(1)
		wg.Done()
	})
	require.NoError(t, err)
	defer p.Close()

	for i := range 5 {
		require.NoError(t, p.Submit(i))
	}
	wg.Wait()
	assert.Equal(t, int32(5), processed.Load())
	assert.Equal(t, 2, p.Workers())
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	p, err := New(1, 1, func(int) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	require.NoError(t, p.Submit(1))
	<-started // worker 已取走第一个任务并阻塞
	require.NoError(t, p.Submit(2))
	assert.Equal(t, 1, p.Pending())
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)

	close(release)
	require.NoError(t, p.Close())
}

func TestPool_CloseDrainsQueue(t *testing.T) {
	var processed atomic.Int32
	p, err := New(1, 100, func(int) {
		time.Sleep(time.Millisecond)
		processed.Add(1)
	})
	require.NoError(t, err)

	for i := range 20 {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Close())
	assert.Equal(t, int32(20), processed.Load())

	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
	require.NoError(t, p.Close())
}

func TestPool_ShutdownTimeout(t *testing.T) {
	release := make(chan struct{})
	p, err := New(1, 1, func(int) { <-release })
	require.NoError(t, err)
	require.NoError(t, p.Submit(1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	<-p.Done()

	//nolint:staticcheck // 验证 nil context 的处理
	assert.ErrorIs(t, p.Shutdown(nil), ErrNilContext)
}

func TestPool_PanicRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var processed atomic.Int32
	p, err := New(1, 10, func(n int) {
		if n == 0 {
			panic("boom")
		}
		processed.Add(1)
	}, WithLogger(logger), WithName("loader"))
	require.NoError(t, err)

	require.NoError(t, p.Submit(0))
	require.NoError(t, p.Submit(1))
	require.NoError(t, p.Close())

	assert.Equal(t, int32(1), processed.Load())
	assert.Contains(t, buf.String(), "task panic recovered")
	assert.Contains(t, buf.String(), "pool=loader")
}

func TestPool_ConcurrentSubmitAndClose(t *testing.T) {
	p, err := New(4, 1024, func(int) {})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				_ = p.Submit(i*100 + j)
			}
		}()
	}
	require.NoError(t, p.Close())
	wg.Wait()
}
