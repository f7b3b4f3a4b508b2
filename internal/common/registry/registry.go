// Package registry provides a generic, thread-safe registry of named factories.
//
// The storage layer keys its SQL dialects by driver name:
//
//	dialects := registry.New[Dialect]()
//	_ = dialects.Register(sqliteDialect{})
//	d, err := dialects.Get("sqlite3")
package registry

import (
	"fmt"
	"sort"
	"sync"

	"shard-federator/internal/common/errors"
)

// Factory defines the interface that all factory types must implement
// to be used with the generic registry.
type Factory interface {
	// GetType returns the type identifier for this factory
	GetType() string
}

// Registry provides a generic, thread-safe registry for factory instances.
type Registry[T Factory] struct {
	factories map[string]T
	mu        sync.RWMutex
}

// New creates a new empty registry for factories of type T.
func New[T Factory]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]T),
	}
}

// Register adds a factory under its own type identifier.
// Empty or already registered identifiers are configuration errors.
func (r *Registry[T]) Register(factory T) error {
	factoryType := factory.GetType()
	if factoryType == "" {
		return errors.ConfigError("factory type is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[factoryType]; exists {
		return errors.ConfigError(fmt.Sprintf("factory type %s is already registered", factoryType))
	}
	r.factories[factoryType] = factory
	return nil
}

// MustRegister is Register for package initialisation; it panics on error.
func (r *Registry[T]) MustRegister(factory T) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// Get retrieves a factory by its type identifier.
func (r *Registry[T]) Get(factoryType string) (T, error) {
	r.mu.RLock()
	factory, exists := r.factories[factoryType]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("factory type %s", factoryType))
	}

	return factory, nil
}

// Types returns the registered type identifiers in sorted order.
func (r *Registry[T]) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for factoryType := range r.factories {
		types = append(types, factoryType)
	}
	sort.Strings(types)
	return types
}

// IsRegistered checks if a factory type is registered in the registry.
func (r *Registry[T]) IsRegistered(factoryType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[factoryType]
	return exists
}

// Count returns the number of registered factories.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.factories)
}
