package routing

import (
	"fmt"
	"hash/fnv"

	"shard-federator/internal/common/errors"
)

// KeyFunc extracts the partition key from a statement argument
type KeyFunc func(argument interface{}) (string, error)

// ArgumentKey uses the argument's default formatting as the key
func ArgumentKey(argument interface{}) (string, error) {
	if argument == nil {
		return "", fmt.Errorf("argument is nil")
	}
	return fmt.Sprint(argument), nil
}

// MapKey extracts field from a map argument
func MapKey(field string) KeyFunc {
	return func(argument interface{}) (string, error) {
		switch m := argument.(type) {
		case map[string]interface{}:
			v, ok := m[field]
			if !ok || v == nil {
				return "", fmt.Errorf("argument has no field %q", field)
			}
			return fmt.Sprint(v), nil
		case map[string]string:
			v, ok := m[field]
			if !ok {
				return "", fmt.Errorf("argument has no field %q", field)
			}
			return v, nil
		default:
			return "", fmt.Errorf("argument of type %T is not a map", argument)
		}
	}
}

// HashRouter routes every fact to exactly one shard chosen by FNV-1a of its key.
type HashRouter struct {
	shards []string
	key    KeyFunc
}

// NewHashRouter creates a hash router over shards. A nil key uses ArgumentKey.
func NewHashRouter(shards []string, key KeyFunc) (*HashRouter, error) {
	if len(shards) == 0 {
		return nil, errors.ConfigError("hash router needs at least one shard")
	}
	for _, s := range shards {
		if s == "" {
			return nil, errors.ConfigError("hash router shard identity is empty")
		}
	}
	if key == nil {
		key = ArgumentKey
	}

	cp := make([]string, len(shards))
	copy(cp, shards)
	return &HashRouter{shards: cp, key: key}, nil
}

// Route implements Router
func (h *HashRouter) Route(fact Fact) (Result, error) {
	if err := fact.Validate(); err != nil {
		return Result{}, err
	}

	k, err := h.key(fact.Argument)
	if err != nil {
		return Result{}, errors.RoutingError(
			fmt.Sprintf("cannot extract partition key for %s", fact.Statement), err)
	}

	return NewResult(h.shards[h.index(k)]), nil
}

func (h *HashRouter) index(key string) int {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))
	return int(hasher.Sum32() % uint32(len(h.shards)))
}

// BroadcastRouter routes every fact to all of its shards.
type BroadcastRouter struct {
	result Result
}

// NewBroadcastRouter creates a router that always returns shards
func NewBroadcastRouter(shards ...string) *BroadcastRouter {
	return &BroadcastRouter{result: NewResult(shards...)}
}

// Route implements Router
func (b *BroadcastRouter) Route(fact Fact) (Result, error) {
	if err := fact.Validate(); err != nil {
		return Result{}, err
	}
	return b.result, nil
}

// CompositeRouter asks each router in turn and returns the first non-empty result.
type CompositeRouter struct {
	routers []Router
}

// NewCompositeRouter chains routers
func NewCompositeRouter(routers ...Router) *CompositeRouter {
	return &CompositeRouter{routers: routers}
}

// Route implements Router. The first error stops the chain.
func (c *CompositeRouter) Route(fact Fact) (Result, error) {
	for _, r := range c.routers {
		result, err := r.Route(fact)
		if err != nil {
			return Result{}, err
		}
		if !result.IsEmpty() {
			return result, nil
		}
	}
	return EmptyResult(), nil
}

// ScopedRouter consults next only for statements matching a rule pattern.
type ScopedRouter struct {
	pattern string
	next    Router
}

// NewScopedRouter restricts next to statements matching pattern
// ("user.byId", "user.*" or "*").
func NewScopedRouter(pattern string, next Router) (*ScopedRouter, error) {
	if err := validatePattern(pattern); err != nil {
		return nil, errors.ConfigError(err.Error())
	}
	if next == nil {
		return nil, errors.ConfigError(fmt.Sprintf("scoped router %s has no router", pattern))
	}
	return &ScopedRouter{pattern: pattern, next: next}, nil
}

// Route implements Router
func (s *ScopedRouter) Route(fact Fact) (Result, error) {
	if err := fact.Validate(); err != nil {
		return Result{}, err
	}
	if !matchStatement(s.pattern, fact.Statement) {
		return EmptyResult(), nil
	}
	return s.next.Route(fact)
}
