// Package routing decides which shards a statement runs against.
//
// A Router maps a Fact (statement name plus argument) to a Result, the
// set of shard identities that must see the statement. The federation
// template treats an empty Result as "no partition matched" and falls
// back to its default target; a Result with one identity is executed
// directly and a Result with several is scattered.
//
// # Routers
//
// HashRouter picks exactly one shard from a fixed list by hashing a key
// extracted from the argument with FNV-1a:
//
//	r, err := routing.NewHashRouter([]string{"s0", "s1", "s2"}, routing.MapKey("user_id"))
//
// RuleRouter evaluates an ordered list of rules. A rule matches on the
// statement name ("user.insert"), a namespace ("user.*") or everything
// ("*"), optionally narrowed by an expr-lang condition evaluated against
// the argument. Every matching rule contributes its shards:
//
//	r, err := routing.NewRuleRouter([]routing.Rule{
//		{Statement: "user.*", Condition: `region == "eu"`, Shards: []string{"eu-1", "eu-2"}},
//		{Statement: "audit.insert", Shards: []string{"audit"}},
//	})
//
// BroadcastRouter always returns every configured shard. CompositeRouter
// asks routers in order and returns the first non-empty result.
// CachedRouter memoises another router's successful results for a TTL.
//
// # Results
//
// Result identities are de-duplicated and keep the order the router
// produced them in. Callers that need a deterministic execution order
// use Sorted.
package routing
