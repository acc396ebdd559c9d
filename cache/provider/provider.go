// Package provider defines the byte-store abstraction both cache tiers
// implement.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte that was previously passed to Set for a key (no
// prepended/appended metadata, no re-encoding, no mutation). They must also be
// safe for concurrent use.
//
// Get distinguishes a miss from a transport failure: the failover coordinator
// relies on that distinction to decide whether the remote tier is healthy, so
// an implementation must never report an IO error as a plain miss.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with per-entry TTLs.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL, overwriting any existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes a key. Deleting an absent key is not an error.
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}
