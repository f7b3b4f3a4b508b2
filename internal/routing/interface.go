package routing

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"shard-federator/internal/common/errors"
)

// Fact is the routing input: the statement about to run and its argument.
type Fact struct {
	Statement string
	Argument  interface{}
}

// NewFact creates a routing fact
func NewFact(statement string, argument interface{}) Fact {
	return Fact{Statement: statement, Argument: argument}
}

// Validate rejects facts a router cannot reason about
func (f Fact) Validate() error {
	if strings.TrimSpace(f.Statement) == "" {
		return errors.RoutingError("statement is required", nil)
	}
	return nil
}

// Namespace returns the statement prefix before its last dot, or "" if there is none.
func (f Fact) Namespace() string {
	i := strings.LastIndex(f.Statement, ".")
	if i < 0 {
		return ""
	}
	return f.Statement[:i]
}

// Result is the set of shard identities a fact routes to.
type Result struct {
	identities []string
}

// NewResult builds a result, dropping empty and duplicate identities.
func NewResult(identities ...string) Result {
	ids := lo.Uniq(lo.Filter(identities, func(id string, _ int) bool {
		return id != ""
	}))
	return Result{identities: ids}
}

// EmptyResult is the result of a router that matched nothing
func EmptyResult() Result {
	return Result{}
}

// Identities returns a copy of the routed identities in router order
func (r Result) Identities() []string {
	out := make([]string, len(r.identities))
	copy(out, r.identities)
	return out
}

// Sorted returns the routed identities in lexical order
func (r Result) Sorted() []string {
	out := r.Identities()
	sort.Strings(out)
	return out
}

// Len returns the number of routed identities
func (r Result) Len() int {
	return len(r.identities)
}

// IsEmpty reports whether no shard matched
func (r Result) IsEmpty() bool {
	return len(r.identities) == 0
}

// Contains reports whether identity was routed to
func (r Result) Contains(identity string) bool {
	return lo.Contains(r.identities, identity)
}

// Router maps a fact to the shards it must run against.
// Implementations must be safe for concurrent use.
type Router interface {
	Route(fact Fact) (Result, error)
}

// RouterFunc adapts a function to the Router interface
type RouterFunc func(fact Fact) (Result, error)

// Route calls f(fact)
func (f RouterFunc) Route(fact Fact) (Result, error) {
	return f(fact)
}
