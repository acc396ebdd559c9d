// Package cache implements a two-tier market-data cache with automatic
// failover. Operations prefer a shared remote store (Redis) and degrade
// transparently to a bounded in-process LRU when the remote store is
// unreachable, using a circuit-breaker retry policy to avoid hammering a dead
// server.
//
// Components:
//   - provider.Provider: byte store with TTL. provider/redis is the remote
//     tier, provider/memory the in-process fallback.
//   - codec.Codec: (de)serializes values <-> []byte (JSON by default).
//   - Composite (via New): the failover coordinator every collaborator uses.
//
// Failover, two states evaluated lazily on each operation:
//   - closed: every request tries the remote tier first.
//   - open: requests skip the remote tier until the retry interval elapses,
//     then the next request probes it once. Success closes the breaker;
//     failure keeps it open and restarts the window.
//
// Successful writes are always mirrored into the fallback tier, so reads stay
// correct during an outage for every key this process has touched. Nothing in
// this package is durable: losing both tiers is a performance event, not a
// correctness one - callers recompute on a miss.
package cache
