// Package merge combines per-shard results of a scatter/gather call into
// the single value the caller asked for. Inputs are in shard order, which
// the federation template keeps sorted by identity.
package merge

import (
	"fmt"
	"reflect"

	"shard-federator/internal/common/errors"
)

// First returns the first non-nil result. Single-row lookups fanned out to
// several shards rely on at most one shard holding the row.
func First(results []interface{}) interface{} {
	for _, r := range results {
		if !isNil(r) {
			return r
		}
	}
	return nil
}

// Concat appends every shard's rows in shard order.
func Concat[T any](results []interface{}) ([]T, error) {
	out := make([]T, 0)
	for i, r := range results {
		if isNil(r) {
			continue
		}
		rows, ok := r.([]T)
		if !ok {
			return nil, typeError("list", i, r)
		}
		out = append(out, rows...)
	}
	return out, nil
}

// Union merges every shard's map; a key present on several shards takes the
// value from the later shard.
func Union[K comparable, V any](results []interface{}) (map[K]V, error) {
	out := make(map[K]V)
	for i, r := range results {
		if isNil(r) {
			continue
		}
		m, ok := r.(map[K]V)
		if !ok {
			return nil, typeError("map", i, r)
		}
		for k, v := range m {
			out[k] = v
		}
	}
	return out, nil
}

// Sum adds up affected-row counts.
func Sum(results []interface{}) (int64, error) {
	var total int64
	for i, r := range results {
		switch n := r.(type) {
		case nil:
		case int:
			total += int64(n)
		case int32:
			total += int64(n)
		case int64:
			total += n
		default:
			return 0, typeError("count", i, r)
		}
	}
	return total, nil
}

func typeError(kind string, i int, r interface{}) error {
	return errors.InternalError(fmt.Sprintf("result %d is %T, not a %s", i, r, kind), nil)
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
