package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
)

// DefaultKeepAlive is how long a worker above the core count waits for work before exiting.
const DefaultKeepAlive = 60 * time.Second

// ErrPoolShutdown is the cause of every submission rejected after Shutdown.
var ErrPoolShutdown = stderrors.New("executor pool is shut down")

// Option configures a Pool
type Option func(*Pool)

// WithKeepAlive overrides the idle timeout of extra workers
func WithKeepAlive(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.keepAlive = d
		}
	}
}

// WithQueueSize overrides the queue capacity, which defaults to the core size
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.queueSize = n
		}
	}
}

// WithLogger sets the pool logger
func WithLogger(logger logging.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Stats is a point-in-time view of a pool
type Stats struct {
	Name       string `json:"name"`
	Core       int    `json:"core"`
	Max        int    `json:"max"`
	Workers    int    `json:"workers"`
	Queued     int    `json:"queued"`
	Completed  int64  `json:"completed"`
	CallerRuns int64  `json:"caller_runs"`
	Shutdown   bool   `json:"shutdown"`
}

// Pool is a bounded worker pool with caller-runs overflow.
type Pool struct {
	name      string
	core      int
	max       int
	queueSize int
	keepAlive time.Duration
	logger    logging.Logger

	queue chan func()

	mu       sync.Mutex
	workers  int
	shutdown bool
	wg       sync.WaitGroup

	completed  atomic.Int64
	callerRuns atomic.Int64
}

// NewPool creates a pool for name. A non-positive poolSize means NumCPU*5.
func NewPool(name string, poolSize int, opts ...Option) *Pool {
	if poolSize <= 0 {
		poolSize = runtime.NumCPU() * 5
	}
	core := poolSize
	if n := runtime.NumCPU(); n < core {
		core = n
	}

	p := &Pool{
		name:      name,
		core:      core,
		max:       poolSize,
		queueSize: core,
		keepAlive: DefaultKeepAlive,
		logger:    logging.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithFields(logging.Field{Key: "component", Value: "executor"}, logging.String("pool", name))
	p.queue = make(chan func(), p.queueSize)

	return p
}

// Name returns the pool name
func (p *Pool) Name() string {
	return p.name
}

// Submit schedules task. When the pool is saturated task runs on the
// calling goroutine before Submit returns.
func (p *Pool) Submit(task func()) error {
	if task == nil {
		return errors.ValidationError("task is nil")
	}

	p.mu.Lock()
	if p.shutdown {
		p.mu.Unlock()
		return p.rejected()
	}

	if p.workers < p.core {
		p.startWorker(task)
		p.mu.Unlock()
		return nil
	}

	select {
	case p.queue <- task:
		p.mu.Unlock()
		return nil
	default:
	}

	if p.workers < p.max {
		p.startWorker(task)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	p.callerRuns.Add(1)
	p.logger.Debug("Pool saturated, running task on caller")
	p.run(task)
	return nil
}

func (p *Pool) rejected() error {
	err := errors.DisposedError(fmt.Sprintf("executor pool %s", p.name))
	err.Cause = ErrPoolShutdown
	return err
}

// must hold p.mu
func (p *Pool) startWorker(first func()) {
	p.workers++
	p.wg.Add(1)
	go pprof.Do(context.Background(), pprof.Labels("pool", p.name), func(context.Context) {
		p.work(first)
	})
}

func (p *Pool) work(first func()) {
	defer p.wg.Done()

	if first != nil {
		p.run(first)
	}

	idle := time.NewTimer(p.keepAlive)
	defer idle.Stop()

	for {
		select {
		case task, ok := <-p.queue:
			if !ok {
				p.retire(true)
				return
			}
			p.run(task)
			idle.Reset(p.keepAlive)
		case <-idle.C:
			if p.retire(false) {
				return
			}
			idle.Reset(p.keepAlive)
		}
	}
}

// retire removes the calling worker when forced or when it is above the core count.
func (p *Pool) retire(force bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if force || p.workers > p.core {
		p.workers--
		return true
	}
	return false
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Task panicked", fmt.Errorf("panic: %v", r))
		}
		p.completed.Add(1)
	}()
	task()
}

// Shutdown stops accepting work and waits for queued and running tasks
// until ctx is done. Waiting past ctx returns a timeout error; the
// remaining tasks keep running.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.shutdown {
		p.shutdown = true
		close(p.queue)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.TimeoutError(fmt.Sprintf("shutdown of executor pool %s", p.name), ctx.Err())
	}
}

// IsShutdown reports whether Shutdown was called
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shutdown
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	workers, shutdown := p.workers, p.shutdown
	p.mu.Unlock()

	return Stats{
		Name:       p.name,
		Core:       p.core,
		Max:        p.max,
		Workers:    workers,
		Queued:     len(p.queue),
		Completed:  p.completed.Load(),
		CallerRuns: p.callerRuns.Load(),
		Shutdown:   shutdown,
	}
}
