package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/shard"
)

// DefaultShutdownGrace bounds how long Dispose waits for pools to drain.
const DefaultShutdownGrace = 5 * time.Minute

// ManagerOption configures a Manager
type ManagerOption func(*Manager)

// WithShutdownGrace overrides DefaultShutdownGrace
func WithShutdownGrace(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.grace = d
		}
	}
}

// WithPoolOptions applies opts to every pool the manager creates
func WithPoolOptions(opts ...Option) ManagerOption {
	return func(m *Manager) {
		m.poolOpts = append(m.poolOpts, opts...)
	}
}

// WithManagerLogger sets the manager logger
func WithManagerLogger(logger logging.Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// Manager owns one pool per shard plus any pools registered explicitly.
type Manager struct {
	registry *shard.Registry
	grace    time.Duration
	poolOpts []Option
	logger   logging.Logger

	mu       sync.Mutex
	pools    map[string]*Pool
	extra    map[string]*Pool
	disposed bool

	hookMu   sync.Mutex
	hookStop func()
	// onSignal runs after the exit hook has disposed the manager.
	onSignal func(os.Signal)
}

// NewManager creates a manager that sizes pools from registry descriptors
func NewManager(registry *shard.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		registry: registry,
		grace:    DefaultShutdownGrace,
		logger:   logging.GetGlobalLogger(),
		pools:    make(map[string]*Pool),
		extra:    make(map[string]*Pool),
		onSignal: reraise,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithFields(logging.Field{Key: "component", Value: "executor_manager"})
	m.poolOpts = append(m.poolOpts, WithLogger(m.logger))
	return m
}

// PoolFor returns the pool of a registered shard, creating it on first use.
func (m *Manager) PoolFor(identity string) (*Pool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return nil, errors.DisposedError("executor manager").WithShard(identity)
	}
	if p, ok := m.pools[identity]; ok {
		return p, nil
	}
	if m.registry == nil {
		return nil, errors.ConfigError("executor manager has no shard registry").WithShard(identity)
	}

	d, ok := m.registry.Descriptor(identity)
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("shard %s", identity)).WithShard(identity)
	}

	p := NewPool(identity, d.EffectivePoolSize(), m.poolOpts...)
	m.pools[identity] = p
	m.logger.Debug("Created executor pool",
		logging.String("shard", identity),
		logging.Int("core", p.core),
		logging.Int("max", p.max),
	)
	return p, nil
}

// Register adds an externally created pool so Dispose shuts it down too.
// Registered pools never stand in for a shard's pool, even when names match.
func (m *Manager) Register(pool *Pool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return errors.DisposedError("executor manager")
	}
	if _, exists := m.extra[pool.Name()]; exists {
		return errors.ConfigError(fmt.Sprintf("executor pool %s is already registered", pool.Name()))
	}
	m.extra[pool.Name()] = pool
	return nil
}

func (m *Manager) tracked() []*Pool {
	out := make([]*Pool, 0, len(m.pools)+len(m.extra))
	for _, p := range m.pools {
		out = append(out, p)
	}
	for _, p := range m.extra {
		out = append(out, p)
	}
	return out
}

// Pools returns the tracked pools ordered by name
func (m *Manager) Pools() []*Pool {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.tracked()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Stats returns the stats of every tracked pool ordered by name
func (m *Manager) Stats() []Stats {
	pools := m.Pools()
	stats := make([]Stats, len(pools))
	for i, p := range pools {
		stats[i] = p.Stats()
	}
	return stats
}

// ShardStats returns the stats of the pools created for shards, keyed by identity
func (m *Manager) ShardStats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.pools))
	for id, p := range m.pools {
		out[id] = p.Stats()
	}
	return out
}

// IsDisposed reports whether Dispose was called
func (m *Manager) IsDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

// Dispose shuts every pool down concurrently and forgets them. Without a
// deadline on ctx the manager's grace period applies. Pools that overrun
// are logged and reported in the returned error; only the first call does
// any work.
func (m *Manager) Dispose(ctx context.Context) error {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return nil
	}
	m.disposed = true
	pools := m.tracked()
	m.pools = make(map[string]*Pool)
	m.extra = make(map[string]*Pool)
	m.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.grace)
		defer cancel()
	}

	m.logger.Info("Disposing executor pools", logging.Int("pools", len(pools)))

	var g errgroup.Group
	for _, p := range pools {
		p := p
		g.Go(func() error {
			if err := p.Shutdown(ctx); err != nil {
				m.logger.Warn("Executor pool did not drain within grace period",
					logging.String("pool", p.Name()),
					logging.Err(err),
				)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// InstallExitHook disposes the manager when the process receives SIGINT or
// SIGTERM and then lets the signal take its default effect. The returned
// function removes the hook. Installing twice returns the first hook.
func (m *Manager) InstallExitHook() func() {
	m.hookMu.Lock()
	defer m.hookMu.Unlock()

	if m.hookStop != nil {
		return m.hookStop
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	stop := m.watch(signals)
	m.hookStop = func() {
		signal.Stop(signals)
		stop()
	}
	return m.hookStop
}

func (m *Manager) watch(signals <-chan os.Signal) func() {
	quit := make(chan struct{})
	var once sync.Once

	go func() {
		select {
		case sig := <-signals:
			m.logger.Info("Signal received, disposing executor pools", logging.String("signal", sig.String()))
			ctx, cancel := context.WithTimeout(context.Background(), m.grace)
			defer cancel()
			if err := m.Dispose(ctx); err != nil {
				m.logger.Warn("Dispose on exit overran", logging.Err(err))
			}
			m.onSignal(sig)
		case <-quit:
		}
	}()

	return func() { once.Do(func() { close(quit) }) }
}

func reraise(sig os.Signal) {
	signal.Reset(sig)
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(sig)
	}
}
