// Package cachex holds expensive, lazily built handles keyed by identity,
// kind and variant.
//
// A Cache is bounded two ways. It never holds more than MaxEntries handles:
// inserting into a full cache evicts the entry that was created first
// (FIFO by creation, not LRU). Entries left unaccessed for IdleTTL are
// treated as absent and are removed by Sweep, which a Janitor runs on a
// fixed schedule.
//
// Construction runs outside the cache lock and concurrent misses for one key
// share a single constructor call. A failed construction is returned to
// every waiting caller and is never cached.
package cachex
