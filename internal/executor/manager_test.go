package executor

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/shard"
)

type nopHandle struct{}

func (nopHandle) Close() error { return nil }

func testRegistry(t *testing.T, ids ...string) *shard.Registry {
	t.Helper()
	r, err := shard.NewRegistry()
	require.NoError(t, err)
	for _, id := range ids {
		require.NoError(t, r.Register(shard.Descriptor{
			Identity: id,
			Provider: shard.ProviderFunc(func(context.Context) (shard.Handle, error) { return nopHandle{}, nil }),
			PoolSize: 2,
		}))
	}
	return r
}

func TestManager_PoolFor(t *testing.T) {
	m := NewManager(testRegistry(t, "s1", "s2"))

	p1, err := m.PoolFor("s1")
	require.NoError(t, err)
	again, err := m.PoolFor("s1")
	require.NoError(t, err)
	assert.Same(t, p1, again)
	assert.Equal(t, 2, p1.Stats().Max)

	_, err = m.PoolFor("s9")
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))

	_, err = m.PoolFor("s2")
	require.NoError(t, err)

	pools := m.Pools()
	require.Len(t, pools, 2)
	assert.Equal(t, "s1", pools[0].Name())
	assert.Len(t, m.Stats(), 2)
}

func TestManager_NoRegistry(t *testing.T) {
	m := NewManager(nil)
	_, err := m.PoolFor("s1")
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestManager_Register(t *testing.T) {
	m := NewManager(testRegistry(t))

	require.NoError(t, m.Register(NewPool("audit", 1)))
	err := m.Register(NewPool("audit", 1))
	assert.True(t, errors.IsType(err, errors.ErrTypeConfig))
}

func TestManager_RegisterKeepsShardPoolsApart(t *testing.T) {
	m := NewManager(testRegistry(t, "audit"))

	registered := NewPool("audit", 1)
	require.NoError(t, m.Register(registered))

	p, err := m.PoolFor("audit")
	require.NoError(t, err)
	assert.NotSame(t, registered, p)
	assert.Equal(t, 2, p.Stats().Max)
	assert.Len(t, m.Pools(), 2)
	assert.Equal(t, 2, m.ShardStats()["audit"].Max)
}

func TestManager_Dispose(t *testing.T) {
	m := NewManager(testRegistry(t, "s1", "s2"))

	p1, err := m.PoolFor("s1")
	require.NoError(t, err)
	p2, err := m.PoolFor("s2")
	require.NoError(t, err)
	audit := NewPool("audit", 1)
	require.NoError(t, m.Register(audit))

	done := make(chan struct{})
	require.NoError(t, p1.Submit(func() {
		time.Sleep(20 * time.Millisecond)
		close(done)
	}))

	require.NoError(t, m.Dispose(context.Background()))

	// in-flight work finished before Dispose returned
	select {
	case <-done:
	default:
		t.Fatal("dispose returned before in-flight work finished")
	}

	assert.True(t, p1.IsShutdown())
	assert.True(t, p2.IsShutdown())
	assert.True(t, audit.IsShutdown())
	assert.True(t, m.IsDisposed())
	assert.Empty(t, m.Pools())

	// idempotent
	require.NoError(t, m.Dispose(context.Background()))

	_, err = m.PoolFor("s1")
	assert.True(t, errors.IsType(err, errors.ErrTypeDisposed))
	assert.True(t, errors.IsType(m.Register(NewPool("late", 1)), errors.ErrTypeDisposed))
}

func TestManager_DisposeOverrun(t *testing.T) {
	m := NewManager(testRegistry(t, "s1"))
	p, err := m.PoolFor("s1")
	require.NoError(t, err)

	release := make(chan struct{})
	defer close(release)
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() { close(started); <-release }))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = m.Dispose(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeTimeout))
	assert.True(t, m.IsDisposed())
}

func TestManager_ExitHook(t *testing.T) {
	m := NewManager(testRegistry(t, "s1"), WithShutdownGrace(time.Second))
	p, err := m.PoolFor("s1")
	require.NoError(t, err)

	got := make(chan os.Signal, 1)
	m.onSignal = func(sig os.Signal) { got <- sig }

	signals := make(chan os.Signal, 1)
	stop := m.watch(signals)
	defer stop()

	signals <- syscall.SIGTERM

	select {
	case sig := <-got:
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(2 * time.Second):
		t.Fatal("exit hook did not run")
	}
	assert.True(t, m.IsDisposed())
	assert.True(t, p.IsShutdown())
}

func TestManager_InstallExitHookOnce(t *testing.T) {
	m := NewManager(testRegistry(t))

	stop := m.InstallExitHook()
	stop()
	stop()
	assert.False(t, m.IsDisposed())
}
