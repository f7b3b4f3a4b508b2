package sqlshard

import (
	"context"
	"database/sql"
	"fmt"

	"shard-federator/internal/common/errors"
	"shard-federator/internal/common/utils"
	"shard-federator/internal/shard"
)

// Provider opens Sessions on one database. It implements shard.HandleProvider.
type Provider struct {
	identity string
	db       *sql.DB
	catalog  *Catalog
	dialect  Dialect
}

// NewProvider wraps an already opened database
func NewProvider(identity string, db *sql.DB, driver string, catalog *Catalog) (*Provider, error) {
	if db == nil {
		return nil, errors.ConfigError(fmt.Sprintf("shard %s has no database", identity)).WithShard(identity)
	}
	if catalog == nil {
		return nil, errors.ConfigError(fmt.Sprintf("shard %s has no statement catalog", identity)).WithShard(identity)
	}
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("shard %s: unsupported driver %s", identity, driver)).WithShard(identity)
	}

	return &Provider{identity: identity, db: db, catalog: catalog, dialect: dialect}, nil
}

// PingRetry governs how Open waits for a shard to become reachable
var PingRetry = utils.DefaultRetryConfig()

// Open opens the database for a shard and verifies it is reachable
func Open(ctx context.Context, identity, driver, dsn string, catalog *Catalog) (*Provider, error) {
	if _, err := DialectFor(driver); err != nil {
		return nil, errors.ConfigError(fmt.Sprintf("shard %s: unsupported driver %s", identity, driver)).WithShard(identity)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to open shard %s", identity), err).WithShard(identity)
	}
	if err := utils.RetryWithBackoff(ctx, PingRetry, func() error { return db.PingContext(ctx) }); err != nil {
		db.Close()
		return nil, errors.ConnectionError(fmt.Sprintf("failed to ping shard %s", identity), err).WithShard(identity)
	}

	return NewProvider(identity, db, driver, catalog)
}

// Identity returns the shard this provider serves
func (p *Provider) Identity() string {
	return p.identity
}

// DB returns the underlying database
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Catalog returns the statement catalog
func (p *Provider) Catalog() *Catalog {
	return p.catalog
}

// Open implements shard.HandleProvider with a dedicated connection.
func (p *Provider) Open(ctx context.Context) (shard.Handle, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection for shard %s: %w", p.identity, err)
	}
	return &Session{identity: p.identity, conn: conn, catalog: p.catalog, dialect: p.dialect}, nil
}

// Health pings the database
func (p *Provider) Health(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database
func (p *Provider) Close() error {
	return p.db.Close()
}
