package shard

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"shard-federator/internal/common/errors"
)

type snapshot struct {
	byIdentity map[string]Descriptor
	ordered    []Descriptor
}

var emptySnapshot = &snapshot{byIdentity: map[string]Descriptor{}}

// Registry maps shard identities to descriptors.
//
// Reads load an immutable snapshot; writes are serialised and publish a new one.
type Registry struct {
	writeMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// NewRegistry creates a registry holding descriptors
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{}
	r.current.Store(emptySnapshot)

	for _, d := range descriptors {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a descriptor. Invalid or duplicate identities are config errors.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if d.PoolSize == 0 {
		d.PoolSize = DefaultPoolSize()
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	old := r.load()
	if _, exists := old.byIdentity[d.Identity]; exists {
		return errors.ConfigError(fmt.Sprintf("shard %s is already registered", d.Identity)).WithShard(d.Identity)
	}

	next := &snapshot{
		byIdentity: make(map[string]Descriptor, len(old.byIdentity)+1),
		ordered:    make([]Descriptor, 0, len(old.ordered)+1),
	}
	for k, v := range old.byIdentity {
		next.byIdentity[k] = v
	}
	next.byIdentity[d.Identity] = d
	next.ordered = append(next.ordered, old.ordered...)
	next.ordered = append(next.ordered, d)
	sort.Slice(next.ordered, func(i, j int) bool {
		return next.ordered[i].Identity < next.ordered[j].Identity
	})

	r.current.Store(next)
	return nil
}

func (r *Registry) load() *snapshot {
	if s := r.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Resolve returns the provider registered under identity
func (r *Registry) Resolve(identity string) (HandleProvider, error) {
	d, ok := r.Descriptor(identity)
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("shard %s", identity)).WithShard(identity)
	}
	return d.Provider, nil
}

// Descriptor returns the descriptor registered under identity
func (r *Registry) Descriptor(identity string) (Descriptor, bool) {
	d, ok := r.load().byIdentity[identity]
	return d, ok
}

// All returns every descriptor sorted by identity
func (r *Registry) All() []Descriptor {
	s := r.load()
	out := make([]Descriptor, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Identities returns every registered identity in sorted order
func (r *Registry) Identities() []string {
	s := r.load()
	out := make([]string, len(s.ordered))
	for i, d := range s.ordered {
		out[i] = d.Identity
	}
	return out
}

// Len returns the number of registered shards
func (r *Registry) Len() int {
	return len(r.load().ordered)
}
