// Package executor runs shard work on bounded goroutine pools.
//
// Every shard gets its own Pool so that a slow shard cannot starve the
// others. A pool keeps min(poolSize, NumCPU) core workers, can grow to
// poolSize workers when its queue (of core slots) is full, and retires the
// extra workers after a minute without work. When both the queue and the
// workers are saturated the submitting goroutine runs the task itself, so
// work is never dropped and callers are throttled naturally.
//
// Manager owns the pools for a shard registry. Pools are created lazily the
// first time a shard is used and torn down together by Dispose, which waits
// for queued and in-flight work up to a grace period (five minutes by
// default). InstallExitHook disposes on SIGINT/SIGTERM for programs that do
// not call Dispose themselves; federation.WithExitHook installs it for a
// template.
package executor
