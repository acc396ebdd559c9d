package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	co "github.com/chartpulse/backend/cache/codec"
	pr "github.com/chartpulse/backend/cache/provider"
)

const (
	defaultTTL           = time.Hour
	defaultRetryInterval = time.Minute
)

// composite layers the remote tier over the in-process fallback and tracks
// remote health with a lazy circuit breaker: no background probing, the state
// is re-evaluated on the hot path of each operation.
type composite struct {
	remote   pr.Provider
	fallback pr.Provider
	codec    co.Codec
	log      Logger

	defaultTTL    time.Duration
	retryInterval time.Duration

	// unavailableSince holds the unix-nano timestamp of the moment the remote
	// tier entered the open (failing) state; 0 means closed (healthy). Races
	// on it are benign: at worst one extra probe or one skipped probe per
	// window.
	unavailableSince atomic.Int64

	now func() time.Time
}

func newComposite(opts Options) (*composite, error) {
	if opts.Remote == nil {
		return nil, fmt.Errorf("cache: remote provider is required")
	}
	if opts.Fallback == nil {
		return nil, fmt.Errorf("cache: fallback provider is required")
	}

	c := &composite{
		remote:   opts.Remote,
		fallback: opts.Fallback,
		now:      time.Now,
	}

	// defaults
	if opts.Codec != nil {
		c.codec = opts.Codec
	} else {
		c.codec = co.JSON{}
	}
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	c.retryInterval = coalesce(opts.RetryInterval, defaultRetryInterval)

	return c, nil
}

func (c *composite) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	payload, err := c.codec.Encode(value)
	if err != nil {
		// Both tiers hold the same encoding, so an unencodable value fails
		// the write outright. This is a caller bug, not an outage.
		c.log.Error("cache set: encode failed", Fields{"key": key, "err": err.Error()})
		return false
	}

	remoteOK := false
	if c.shouldTryRemote() {
		if err := c.remote.Set(ctx, key, payload, ttl); err != nil {
			c.markRemoteDown(err)
		} else {
			c.markRemoteUp()
			remoteOK = true
		}
	}

	// Mirror into the fallback regardless of the remote outcome so reads stay
	// correct for keys this process has touched during an outage.
	fallbackOK := c.fallback.Set(ctx, key, payload, ttl) == nil

	return remoteOK || fallbackOK
}

func (c *composite) Get(ctx context.Context, key string, dest any) bool {
	if c.shouldTryRemote() {
		payload, ok, err := c.remote.Get(ctx, key)
		switch {
		case err != nil:
			c.markRemoteDown(err)
		case ok:
			c.markRemoteUp()
			if derr := c.codec.Decode(payload, dest); derr == nil {
				return true
			}
			// The remote answered, so this is corruption rather than an
			// outage: drop the entry and fall through to the fallback.
			_ = c.remote.Del(ctx, key)
			c.log.Warn("cache get: dropped undecodable remote entry", Fields{"key": key})
		default:
			// A clean miss is still a successful round trip.
			c.markRemoteUp()
		}
	}

	payload, ok, err := c.fallback.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return c.codec.Decode(payload, dest) == nil
}

func (c *composite) Delete(ctx context.Context, key string) bool {
	remoteOK := false
	if c.shouldTryRemote() {
		if err := c.remote.Del(ctx, key); err != nil {
			c.markRemoteDown(err)
		} else {
			c.markRemoteUp()
			remoteOK = true
		}
	}

	fallbackOK := c.fallback.Del(ctx, key) == nil

	return remoteOK || fallbackOK
}

func (c *composite) Close(ctx context.Context) error {
	return errors.Join(c.remote.Close(ctx), c.fallback.Close(ctx))
}

// shouldTryRemote reports whether this operation should attempt the remote
// tier: always while closed, and once per retry interval while open (the
// half-open probe rides on the next request instead of a dedicated timer).
func (c *composite) shouldTryRemote() bool {
	since := c.unavailableSince.Load()
	if since == 0 {
		return true
	}
	return c.now().Sub(time.Unix(0, since)) > c.retryInterval
}

// markRemoteDown opens the breaker. The outage is logged exactly once per
// transition; a failed half-open probe just restarts the retry window.
func (c *composite) markRemoteDown(err error) {
	nowNs := c.now().UnixNano()
	if c.unavailableSince.CompareAndSwap(0, nowNs) {
		c.log.Warn("remote store unavailable, serving from fallback", Fields{"err": err.Error()})
		return
	}
	c.unavailableSince.Store(nowNs)
}

// markRemoteUp closes the breaker after any successful remote round trip.
func (c *composite) markRemoteUp() {
	if c.unavailableSince.Swap(0) != 0 {
		c.log.Info("remote store recovered", nil)
	}
}
