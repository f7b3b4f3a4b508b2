package federation

import (
	"context"
	"fmt"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/logging"
	"shard-federator/internal/executor"
	"shard-federator/internal/routing"
	"shard-federator/internal/scatter"
	"shard-federator/internal/shard"
	"shard-federator/internal/storage/sqlshard"
)

// DefaultIdentity names the default target in logs and errors.
const DefaultIdentity = "default"

// Row is one result row keyed by column name.
type Row = sqlshard.Row

// Bounds is the per-shard offset and limit of a bounded select.
type Bounds = sqlshard.Bounds

// Session is the handle type the template's operations run against.
// *sqlshard.Session implements it.
type Session interface {
	shard.Handle
	SelectOne(ctx context.Context, statement string, arg interface{}) (Row, error)
	SelectList(ctx context.Context, statement string, arg interface{}) ([]Row, error)
	SelectMap(ctx context.Context, statement string, arg interface{}, keyColumn string) (map[string]Row, error)
	Select(ctx context.Context, statement string, arg interface{}, handler func(Row) error) error
	SelectListWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds) ([]Row, error)
	SelectMapWithBounds(ctx context.Context, statement string, arg interface{}, keyColumn string, bounds Bounds) (map[string]Row, error)
	SelectWithBounds(ctx context.Context, statement string, arg interface{}, bounds Bounds, handler func(Row) error) error
	Exec(ctx context.Context, statement string, arg interface{}) (int64, error)
}

// Auditor records statements before they run.
type Auditor interface {
	Audit(ctx context.Context, statement, sqlText string, argument interface{}) error
}

// Option configures a Template
type Option func(*Template)

// WithRouter sets the router
func WithRouter(r routing.Router) Option {
	return func(t *Template) { t.router = r }
}

// WithRegistry sets the shard registry
func WithRegistry(r *shard.Registry) Option {
	return func(t *Template) { t.registry = r }
}

// WithDefault sets the target used when routing is off or matches nothing
func WithDefault(p shard.HandleProvider) Option {
	return func(t *Template) { t.fallback = p }
}

// WithManager sets the executor manager that owns shard pools
func WithManager(m *executor.Manager) Option {
	return func(t *Template) { t.manager = m }
}

// WithProcessor sets the scatter/gather processor
func WithProcessor(p *scatter.Processor) Option {
	return func(t *Template) { t.processor = p }
}

// WithAuditor enables statement auditing
func WithAuditor(a Auditor) Option {
	return func(t *Template) { t.auditor = a }
}

// WithCatalog lets the auditor see the SQL text of statements
func WithCatalog(c *sqlshard.Catalog) Option {
	return func(t *Template) { t.catalog = c }
}

// WithExitHook disposes the template's pools on SIGINT or SIGTERM for
// programs that never call Close. Close removes the hook.
func WithExitHook() Option {
	return func(t *Template) { t.exitHook = true }
}

// WithLogger sets the logger
func WithLogger(l logging.Logger) Option {
	return func(t *Template) { t.logger = l }
}

// Template routes statements to shards and merges their results.
type Template struct {
	router    routing.Router
	registry  *shard.Registry
	fallback  shard.HandleProvider
	manager   *executor.Manager
	processor *scatter.Processor
	auditor   Auditor
	catalog   *sqlshard.Catalog
	auditPool *executor.Pool
	exitHook  bool
	stopHook  func()
	logger    logging.Logger
}

// New builds a template. Without routing a default target is required.
func New(opts ...Option) (*Template, error) {
	t := &Template{}
	for _, opt := range opts {
		opt(t)
	}

	if t.logger == nil {
		t.logger = logging.GetGlobalLogger()
	}
	t.logger = t.logger.WithFields(logging.Field{Key: "component", Value: "federation"})

	if !t.RoutingEnabled() && t.fallback == nil {
		return nil, errors.ConfigError("template needs a default target when routing is not configured")
	}
	if (t.router == nil) != (t.registry == nil) {
		t.logger.Warn("Routing needs both a router and a shard registry; using the default target only")
	}

	if t.manager == nil {
		t.manager = executor.NewManager(t.registry, executor.WithManagerLogger(t.logger))
	}
	if t.processor == nil {
		t.processor = scatter.NewProcessor(t.logger)
	}

	if t.auditor != nil {
		t.auditPool = executor.NewPool("audit", 1, executor.WithQueueSize(1024), executor.WithLogger(t.logger))
		if err := t.manager.Register(t.auditPool); err != nil {
			return nil, err
		}
	}

	if t.exitHook {
		t.stopHook = t.manager.InstallExitHook()
	}

	return t, nil
}

// RoutingEnabled reports whether both a router and a registry are configured
func (t *Template) RoutingEnabled() bool {
	return t.router != nil && t.registry != nil
}

// Manager returns the executor manager
func (t *Template) Manager() *executor.Manager {
	return t.manager
}

// Registry returns the shard registry, which may be nil
func (t *Template) Registry() *shard.Registry {
	return t.registry
}

// Close disposes every pool the template's manager owns
func (t *Template) Close(ctx context.Context) error {
	if t.stopHook != nil {
		t.stopHook()
	}
	return t.manager.Dispose(ctx)
}

// Targets returns the sorted shard identities statement would run on.
// An empty slice means the default target.
func (t *Template) Targets(statement string, arg interface{}) ([]string, error) {
	if !t.RoutingEnabled() {
		return nil, t.requireDefault(statement)
	}

	result, err := t.router.Route(routing.NewFact(statement, arg))
	if err != nil {
		if errors.IsType(err, errors.ErrTypeRouting) {
			return nil, err
		}
		return nil, errors.RoutingError(fmt.Sprintf("router failed for %s", statement), err)
	}

	if result.IsEmpty() {
		t.logger.Info("No shard matched, using default target", logging.String("statement", statement))
		return nil, t.requireDefault(statement)
	}
	return result.Sorted(), nil
}

func (t *Template) requireDefault(statement string) error {
	if t.fallback == nil {
		return errors.ConfigError(fmt.Sprintf("no shard matched %s and no default target is configured", statement))
	}
	return nil
}

// Execute runs action on every target of statement and returns the
// per-target results in target order.
func (t *Template) Execute(ctx context.Context, statement string, arg interface{}, action scatter.Action) ([]interface{}, error) {
	targets, err := t.Targets(statement, arg)
	if err != nil {
		return nil, err
	}

	t.audit(statement, arg)
	ctx = logging.ContextWithStatement(ctx, statement)

	switch len(targets) {
	case 0:
		v, err := t.runDirect(ctx, DefaultIdentity, t.fallback, action)
		if err != nil {
			return nil, err
		}
		return []interface{}{v}, nil

	case 1:
		provider, err := t.resolve(targets[0])
		if err != nil {
			return nil, err
		}
		v, err := t.runDirect(ctx, targets[0], provider, action)
		if err != nil {
			return nil, err
		}
		return []interface{}{v}, nil
	}

	t.logger.WithContext(ctx).Debug("Scattering statement", logging.Strings("targets", targets))

	requests := make([]scatter.Request, len(targets))
	for i, id := range targets {
		provider, err := t.resolve(id)
		if err != nil {
			return nil, err
		}
		pool, err := t.manager.PoolFor(id)
		if err != nil {
			return nil, err
		}
		requests[i] = scatter.Request{Identity: id, Provider: provider, Pool: pool, Action: action}
	}

	return t.processor.Process(ctx, requests)
}

func (t *Template) resolve(identity string) (shard.HandleProvider, error) {
	provider, err := t.registry.Resolve(identity)
	if err != nil {
		return nil, errors.RoutingError(fmt.Sprintf("router selected unknown shard %s", identity), err).WithShard(identity)
	}
	return provider, nil
}

func (t *Template) runDirect(ctx context.Context, identity string, provider shard.HandleProvider, action scatter.Action) (interface{}, error) {
	h, err := provider.Open(ctx)
	if err == nil && h == nil {
		err = fmt.Errorf("provider returned no handle")
	}
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to acquire handle on shard %s", identity), err).WithShard(identity)
	}
	defer func() {
		if err := h.Close(); err != nil {
			t.logger.WithContext(ctx).Warn("Failed to release shard handle",
				logging.String("shard", identity),
				logging.Err(err),
			)
		}
	}()

	v, err := action(ctx, h)
	if err != nil {
		return nil, errors.ExecutionError(fmt.Sprintf("statement failed on shard %s", identity), err).WithShard(identity)
	}
	return v, nil
}

func (t *Template) audit(statement string, arg interface{}) {
	if t.auditor == nil {
		return
	}

	var text string
	if t.catalog != nil {
		text, _ = t.catalog.Lookup(statement)
	}

	err := t.auditPool.Submit(func() {
		if err := t.auditor.Audit(context.Background(), statement, text, arg); err != nil {
			t.logger.Warn("Audit failed",
				logging.String("statement", statement),
				logging.Err(err),
			)
		}
	})
	if err != nil {
		t.logger.Debug("Audit skipped", logging.String("statement", statement), logging.Err(err))
	}
}

func sessionAction(fn func(ctx context.Context, s Session) (interface{}, error)) scatter.Action {
	return func(ctx context.Context, h shard.Handle) (interface{}, error) {
		s, ok := h.(Session)
		if !ok {
			return nil, errors.InternalError(fmt.Sprintf("handle %T is not a session", h), nil)
		}
		return fn(ctx, s)
	}
}
