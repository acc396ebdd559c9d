package cache

import (
	"context"
	"time"

	co "github.com/chartpulse/backend/cache/codec"
	pr "github.com/chartpulse/backend/cache/provider"
)

// Cache is the contract every collaborator consumes. Operations never return
// errors for remote-store problems: a remote outage degrades to the fallback
// tier and shows up only as latency/freshness, never as a failure surfaced to
// the caller.
type Cache interface {
	// Set stores value under key with the given TTL (ttl <= 0 applies the
	// configured default). Reports true when at least one tier accepted the
	// write.
	Set(ctx context.Context, key string, value any, ttl time.Duration) bool

	// Get decodes the cached value into dest and reports whether a live entry
	// was found in either tier.
	Get(ctx context.Context, key string, dest any) bool

	// Delete removes the key from both tiers. Idempotent.
	Delete(ctx context.Context, key string) bool

	Close(ctx context.Context) error
}

// Options tune the composite cache. Remote and Fallback are required; others
// have sensible defaults.
type Options struct {
	Remote   pr.Provider // shared network store, may fail transiently
	Fallback pr.Provider // in-process store, always available

	Codec         co.Codec      // nil => codec.JSON
	Logger        Logger        // nil => NopLogger
	DefaultTTL    time.Duration // 0 => 1h
	RetryInterval time.Duration // how long to skip a failing remote; 0 => 60s
}

// New builds the composite cache. Construct one per process at startup and
// hand the same instance to every collaborator; there is no package-level
// singleton.
func New(opts Options) (Cache, error) {
	return newComposite(opts)
}
