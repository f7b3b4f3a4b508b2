// Package shard describes the data partitions a federated statement can run
// against and the registry that resolves a shard identity to the provider
// that opens handles on it.
//
// A Descriptor pairs an identity with a HandleProvider and the size of the
// executor pool that runs work for that shard. Descriptors are registered
// once at startup; the Registry keeps an immutable snapshot that readers
// load without locking, so adding a shard later never blocks an in-flight
// scatter/gather call.
//
// Providers can be wrapped with guards:
//
//	p := shard.WithRateLimit(shard.WithBreaker(sqlProvider, breakers.GetOrCreate("s1")), limiter, "s1")
//
// WithBreaker fails fast with a connection error while a shard keeps
// refusing handles. WithRateLimit caps how many handles per second a shard
// hands out.
package shard
