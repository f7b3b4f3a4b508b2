package executor

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shard-federator/internal/common/errors"
)

func TestNewPool_Sizing(t *testing.T) {
	p := NewPool("s1", 1)
	st := p.Stats()
	assert.Equal(t, 1, st.Core)
	assert.Equal(t, 1, st.Max)
	assert.Equal(t, 1, cap(p.queue))

	big := NewPool("s2", runtime.NumCPU()+3)
	assert.Equal(t, runtime.NumCPU(), big.Stats().Core)
	assert.Equal(t, runtime.NumCPU()+3, big.Stats().Max)
	assert.Equal(t, runtime.NumCPU(), cap(big.queue))

	def := NewPool("s3", 0)
	assert.Equal(t, runtime.NumCPU()*5, def.Stats().Max)

	custom := NewPool("audit", 1, WithQueueSize(64))
	assert.Equal(t, 64, cap(custom.queue))
}

func TestPool_RunsTasks(t *testing.T) {
	p := NewPool("s1", 4)

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(50), atomic.LoadInt32(&count))
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int64(50), p.Stats().Completed)
}

func TestPool_CallerRunsWhenSaturated(t *testing.T) {
	p := NewPool("s1", 1)
	release := make(chan struct{})
	started := make(chan struct{})

	// occupies the only worker
	require.NoError(t, p.Submit(func() {
		close(started)
		<-release
	}))
	<-started

	// fills the queue
	queuedRan := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(queuedRan) }))

	// nothing left: runs inline before Submit returns
	ranInline := false
	require.NoError(t, p.Submit(func() { ranInline = true }))
	assert.True(t, ranInline)
	assert.Equal(t, int64(1), p.Stats().CallerRuns)

	close(release)
	<-queuedRan
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, int64(3), p.Stats().Completed)
}

func TestPool_GrowsToMaxThenShrinks(t *testing.T) {
	core := runtime.NumCPU()
	p := NewPool("s1", core+2, WithKeepAlive(20*time.Millisecond))
	release := make(chan struct{})

	var running sync.WaitGroup
	block := func() {
		running.Done()
		<-release
	}

	running.Add(core)
	for i := 0; i < core; i++ {
		require.NoError(t, p.Submit(block))
	}
	running.Wait()

	// queue takes core tasks without starting workers
	for i := 0; i < core; i++ {
		require.NoError(t, p.Submit(func() { <-release }))
	}
	assert.Equal(t, core, p.Stats().Workers)
	assert.Equal(t, core, p.Stats().Queued)

	running.Add(2)
	require.NoError(t, p.Submit(block))
	require.NoError(t, p.Submit(block))
	running.Wait()
	assert.Equal(t, core+2, p.Stats().Workers)
	assert.Zero(t, p.Stats().CallerRuns)

	close(release)

	assert.Eventually(t, func() bool {
		return p.Stats().Workers == core
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Zero(t, p.Stats().Workers)
}

func TestPool_RecoversPanics(t *testing.T) {
	p := NewPool("s1", 1)

	require.NoError(t, p.Submit(func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(done) }))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pool stopped running tasks after a panic")
	}
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPool_Shutdown(t *testing.T) {
	t.Run("drains queued work", func(t *testing.T) {
		p := NewPool("s1", 1)
		release := make(chan struct{})
		var ran int32

		require.NoError(t, p.Submit(func() { <-release; atomic.AddInt32(&ran, 1) }))
		require.NoError(t, p.Submit(func() { atomic.AddInt32(&ran, 1) }))

		go func() {
			time.Sleep(20 * time.Millisecond)
			close(release)
		}()
		require.NoError(t, p.Shutdown(context.Background()))
		assert.Equal(t, int32(2), atomic.LoadInt32(&ran))
		assert.True(t, p.IsShutdown())
	})

	t.Run("rejects after shutdown", func(t *testing.T) {
		p := NewPool("s1", 1)
		require.NoError(t, p.Shutdown(context.Background()))
		require.NoError(t, p.Shutdown(context.Background()))

		err := p.Submit(func() {})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeDisposed))
		assert.True(t, stderrors.Is(err, ErrPoolShutdown))
	})

	t.Run("grace period overrun", func(t *testing.T) {
		p := NewPool("s1", 1)
		release := make(chan struct{})
		defer close(release)

		started := make(chan struct{})
		require.NoError(t, p.Submit(func() { close(started); <-release }))
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := p.Shutdown(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
	})

	t.Run("nil task", func(t *testing.T) {
		p := NewPool("s1", 1)
		assert.True(t, errors.IsType(p.Submit(nil), errors.ErrTypeValidation))
	})
}
