// Package redis implements the remote cache tier on top of a Redis-compatible
// server via go-redis.
package redis

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/chartpulse/backend/cache/provider"
)

// Per-call and dial timeouts stay well under the coordinator's tolerance so a
// dead server can never stall a request indefinitely.
const defaultTimeout = 2 * time.Second

type Config struct {
	Host     string
	Port     int
	Password string

	DialTimeout  time.Duration // 0 => 2s
	ReadTimeout  time.Duration // 0 => 2s
	WriteTimeout time.Duration // 0 => 2s
}

// Remote wraps a Redis client behind the provider contract. The client
// reconnects on its own, so a Remote constructed against a dead server becomes
// usable as soon as the server comes back; the coordinator's probes will
// notice.
type Remote struct {
	rdb         goredis.UniversalClient
	closeClient bool
}

var _ pr.Provider = (*Remote)(nil)

func New(cfg Config) *Remote {
	dial := cfg.DialTimeout
	if dial <= 0 {
		dial = defaultTimeout
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = defaultTimeout
	}
	write := cfg.WriteTimeout
	if write <= 0 {
		write = defaultTimeout
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Password:     cfg.Password,
		DialTimeout:  dial,
		ReadTimeout:  read,
		WriteTimeout: write,
	})
	return &Remote{rdb: client, closeClient: true}
}

// NewWithClient wraps an externally managed client (cluster/sentinel setups,
// tests). The caller keeps ownership and is responsible for closing it.
func NewWithClient(client goredis.UniversalClient) *Remote {
	return &Remote{rdb: client}
}

// Ping issues a lightweight liveness probe. It never panics; any transport
// error reads as "not available".
func (r *Remote) Ping(ctx context.Context) bool {
	return r.rdb.Ping(ctx).Err() == nil
}

func (r *Remote) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, err // transport/server error
	}
	return b, true, nil
}

func (r *Remote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0 // non-positive TTLs mean "no expiry" on the server side
	}
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *Remote) Del(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Close releases the underlying client only when this adapter owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Remote) Close(context.Context) error {
	if !r.closeClient {
		return nil
	}
	if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}
