// Package federation is the query surface applications call.
//
// A Template sits in front of a set of shards. For each operation it asks
// its Router which shards the statement targets and then:
//
//   - no router or no registry configured: runs on the default target
//   - the router matched nothing: logs it and runs on the default target
//   - one shard: opens a session on that shard and runs directly
//   - several shards: scatters one unit per shard (sorted by identity)
//     through the executor pools and merges the results
//
// Merging depends on the operation. SelectOne takes the first non-nil row
// in shard order and therefore assumes at most one shard holds the row.
// SelectList concatenates in shard order. SelectMap unions maps with later
// shards overwriting earlier ones on key collisions. Insert, Update and
// Delete sum affected-row counts. Select streams rows to a handler; with
// several shards the handler is called from several goroutines at once and
// must be safe for concurrent use.
//
// The WithBounds variants hand the same offset and limit to every shard, so
// a multi-shard call returns up to Limit rows per shard before merging.
//
// Any shard failing fails the whole call; there are no partial results.
// Programs that do not own signal handling can pass WithExitHook so pools
// are disposed on SIGINT or SIGTERM.
package federation
