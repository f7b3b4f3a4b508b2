package shard

import (
	"context"
	"fmt"
	"runtime"

	"shard-federator/internal/common/errors"
)

// Handle is an open session on one shard. Close releases it.
type Handle interface {
	Close() error
}

// HandleProvider opens handles on one shard.
type HandleProvider interface {
	Open(ctx context.Context) (Handle, error)
}

// ProviderFunc adapts a function to HandleProvider
type ProviderFunc func(ctx context.Context) (Handle, error)

// Open calls f(ctx)
func (f ProviderFunc) Open(ctx context.Context) (Handle, error) {
	return f(ctx)
}

// DefaultPoolSize is the executor pool size used when a descriptor leaves it unset.
func DefaultPoolSize() int {
	return runtime.NumCPU() * 5
}

// Descriptor describes one shard
type Descriptor struct {
	Identity string
	Provider HandleProvider
	PoolSize int
}

// NewDescriptor creates a descriptor with the default pool size
func NewDescriptor(identity string, provider HandleProvider) Descriptor {
	return Descriptor{Identity: identity, Provider: provider, PoolSize: DefaultPoolSize()}
}

// Validate checks that the descriptor can be registered
func (d Descriptor) Validate() error {
	if d.Identity == "" {
		return errors.ConfigError("shard identity is empty")
	}
	if d.Provider == nil {
		return errors.ConfigError(fmt.Sprintf("shard %s has no handle provider", d.Identity)).WithShard(d.Identity)
	}
	if d.PoolSize < 0 {
		return errors.ConfigError(fmt.Sprintf("shard %s has negative pool size %d", d.Identity, d.PoolSize)).WithShard(d.Identity)
	}
	return nil
}

// EffectivePoolSize returns PoolSize or the default when unset
func (d Descriptor) EffectivePoolSize() int {
	if d.PoolSize <= 0 {
		return DefaultPoolSize()
	}
	return d.PoolSize
}

func (d Descriptor) String() string {
	return fmt.Sprintf("shard(%s, pool=%d)", d.Identity, d.EffectivePoolSize())
}
