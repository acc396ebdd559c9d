package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chartpulse/backend/cache/provider/memory"
)

var errDown = errors.New("connection refused")

type remoteEntry struct {
	v   []byte
	exp time.Time
}

// fakeRemote is a controllable remote tier: it can be switched into a failing
// state and counts every attempted call so tests can verify the breaker skips
// it.
type fakeRemote struct {
	m       map[string]remoteEntry
	failing bool
	calls   int
	now     func() time.Time
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{m: make(map[string]remoteEntry), now: time.Now}
}

func (r *fakeRemote) Get(_ context.Context, key string) ([]byte, bool, error) {
	r.calls++
	if r.failing {
		return nil, false, errDown
	}
	e, ok := r.m[key]
	if !ok || (!e.exp.IsZero() && !e.exp.After(r.now())) {
		delete(r.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (r *fakeRemote) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	r.calls++
	if r.failing {
		return errDown
	}
	var exp time.Time
	if ttl > 0 {
		exp = r.now().Add(ttl)
	}
	r.m[key] = remoteEntry{v: value, exp: exp}
	return nil
}

func (r *fakeRemote) Del(_ context.Context, key string) error {
	r.calls++
	if r.failing {
		return errDown
	}
	delete(r.m, key)
	return nil
}

func (r *fakeRemote) Close(context.Context) error { return nil }

// countingLogger records transition log lines so tests can assert the outage
// is logged once per transition, not once per request.
type countingLogger struct {
	NopLogger
	warns int
	infos int
}

func (l *countingLogger) Warn(string, Fields) { l.warns++ }
func (l *countingLogger) Info(string, Fields) { l.infos++ }

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newTestCache(t *testing.T, remote *fakeRemote, opt func(*Options)) (*composite, *countingLogger) {
	t.Helper()
	log := &countingLogger{}
	opts := Options{
		Remote:        remote,
		Fallback:      memory.New(16),
		Logger:        log,
		RetryInterval: time.Minute,
	}
	if opt != nil {
		opt(&opts)
	}
	c, err := newComposite(opts)
	if err != nil {
		t.Fatalf("newComposite: %v", err)
	}
	return c, log
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	cc, _ := newTestCache(t, newFakeRemote(), nil)

	want := quote{Symbol: "AAPL", Price: 187.31}
	if !cc.Set(ctx, "q:AAPL", want, time.Hour) {
		t.Fatalf("Set failed")
	}

	var got quote
	if !cc.Get(ctx, "q:AAPL", &got) {
		t.Fatalf("Get miss after Set")
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func TestGetPrefersRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	cc, _ := newTestCache(t, remote, nil)

	if !cc.Set(ctx, "k", quote{Symbol: "MSFT", Price: 1}, time.Hour) {
		t.Fatalf("Set failed")
	}

	// Diverge the tiers: a fresher value lands in the remote only (e.g.
	// written by another process). The remote copy must win.
	fresh, _ := cc.codec.Encode(quote{Symbol: "MSFT", Price: 2})
	if err := remote.Set(ctx, "k", fresh, time.Hour); err != nil {
		t.Fatalf("remote Set: %v", err)
	}

	var got quote
	if !cc.Get(ctx, "k", &got) {
		t.Fatalf("Get miss")
	}
	if got.Price != 2 {
		t.Fatalf("expected remote value to win, got %+v", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	cc, _ := newTestCache(t, newFakeRemote(), nil)

	cc.Set(ctx, "k", quote{Symbol: "X"}, time.Hour)
	if !cc.Delete(ctx, "k") {
		t.Fatalf("first Delete failed")
	}
	if !cc.Delete(ctx, "k") {
		t.Fatalf("second Delete failed; delete must be idempotent")
	}
	var got quote
	if cc.Get(ctx, "k", &got) {
		t.Fatalf("Get after Delete should miss")
	}
}

// TestFailoverOpensAndSkipsRemote walks the concrete outage scenario: the
// first failure opens the breaker, requests inside the retry window never
// touch the remote tier, and the fallback keeps answering.
func TestFailoverOpensAndSkipsRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.failing = true

	base := time.Now()
	now := base
	cc, log := newTestCache(t, remote, nil)
	cc.now = func() time.Time { return now }

	// t=0: set attempts remote once, fails, opens the breaker; the fallback
	// still takes the write.
	if !cc.Set(ctx, "x", 1, time.Hour) {
		t.Fatalf("Set should succeed via fallback")
	}
	if remote.calls != 1 {
		t.Fatalf("expected exactly 1 remote attempt, got %d", remote.calls)
	}
	if log.warns != 1 {
		t.Fatalf("expected 1 outage log, got %d", log.warns)
	}

	// t=30s: inside the retry window the remote is skipped entirely.
	now = base.Add(30 * time.Second)
	var got int
	if !cc.Get(ctx, "x", &got) || got != 1 {
		t.Fatalf("fallback Get: ok=%v got=%d", got == 1, got)
	}
	if remote.calls != 1 {
		t.Fatalf("remote must not be probed within retry interval, calls=%d", remote.calls)
	}

	// More traffic inside the window: still no probes, still no extra logs.
	cc.Set(ctx, "y", 2, time.Hour)
	cc.Delete(ctx, "y")
	if remote.calls != 1 {
		t.Fatalf("remote probed during open state, calls=%d", remote.calls)
	}
	if log.warns != 1 {
		t.Fatalf("outage must be logged once per transition, got %d", log.warns)
	}

	// t=61s: the next operation carries the half-open probe.
	now = base.Add(61 * time.Second)
	if !cc.Get(ctx, "x", &got) || got != 1 {
		t.Fatalf("fallback Get after probe: got=%d", got)
	}
	if remote.calls != 2 {
		t.Fatalf("expected a single probe after the interval, calls=%d", remote.calls)
	}

	// The failed probe restarted the window: no probe at +30s from there.
	now = base.Add(91 * time.Second)
	cc.Get(ctx, "x", &got)
	if remote.calls != 2 {
		t.Fatalf("failed probe must restart retry window, calls=%d", remote.calls)
	}
}

func TestFailoverRecovery(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.failing = true

	base := time.Now()
	now := base
	cc, log := newTestCache(t, remote, nil)
	cc.now = func() time.Time { return now }
	remote.now = cc.now

	cc.Set(ctx, "x", 1, time.Hour) // opens
	if since := cc.unavailableSince.Load(); since == 0 {
		t.Fatalf("breaker should be open")
	}

	// Remote comes back; after the interval the probe succeeds and closes
	// the breaker.
	remote.failing = false
	now = base.Add(61 * time.Second)
	var got int
	if !cc.Get(ctx, "x", &got) || got != 1 {
		t.Fatalf("Get during recovery: got=%d", got)
	}
	if since := cc.unavailableSince.Load(); since != 0 {
		t.Fatalf("breaker should be closed after successful probe")
	}
	if log.infos != 1 {
		t.Fatalf("expected 1 recovery log, got %d", log.infos)
	}

	// Closed again: subsequent operations prefer the remote tier.
	calls := remote.calls
	cc.Set(ctx, "z", 3, time.Hour)
	if remote.calls != calls+1 {
		t.Fatalf("remote not attempted after recovery")
	}
}

func TestRemoteMissClosesBreaker(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()

	base := time.Now()
	now := base
	cc, _ := newTestCache(t, remote, nil)
	cc.now = func() time.Time { return now }

	remote.failing = true
	cc.Set(ctx, "x", 1, time.Hour)

	// A clean miss on the probe proves the server is reachable again.
	remote.failing = false
	now = base.Add(61 * time.Second)
	var got int
	cc.Get(ctx, "nope", &got)
	if since := cc.unavailableSince.Load(); since != 0 {
		t.Fatalf("a remote miss is a successful round trip and must close the breaker")
	}
}

func TestCorruptRemoteEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	cc, _ := newTestCache(t, remote, nil)

	if err := remote.Set(ctx, "bad", []byte("{not json"), time.Hour); err != nil {
		t.Fatalf("inject: %v", err)
	}

	var got quote
	if cc.Get(ctx, "bad", &got) {
		t.Fatalf("undecodable entry must read as a miss")
	}
	// Corruption is not an outage.
	if since := cc.unavailableSince.Load(); since != 0 {
		t.Fatalf("corrupt payload must not open the breaker")
	}
	// The entry was dropped from the remote tier.
	if _, ok := remote.m["bad"]; ok {
		t.Fatalf("corrupt entry was not self-healed")
	}
}

func TestEncodeFailureFailsSet(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	cc, _ := newTestCache(t, remote, nil)

	// Channels are not JSON-serializable.
	if cc.Set(ctx, "k", make(chan int), time.Hour) {
		t.Fatalf("Set with unencodable value must fail")
	}
	if remote.calls != 0 {
		t.Fatalf("encode failure must not reach the remote tier")
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Fallback: memory.New(1)}); err == nil {
		t.Fatalf("expected error without remote provider")
	}
	if _, err := New(Options{Remote: newFakeRemote()}); err == nil {
		t.Fatalf("expected error without fallback provider")
	}
}
