//go:build !integration

package redis

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func (m *memCounter) Ping(ctx context.Context) error { return nil }
func (m *memCounter) Close() error                   { return nil }

func (m *memCounter) Incr(ctx context.Context, key string) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[key]++
	return m.counts[key], nil
}

func (m *memCounter) Expire(ctx context.Context, key string, expiration time.Duration) error {
	m.expires[key] = expiration
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	c := &memCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
	rl := NewRateLimiter(c)
	ctx := context.Background()
	key := AICallsKey("openai", time.Unix(120, 0))

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("call %d should pass: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, key, 3, time.Minute); ok {
		t.Fatal("fourth call should be throttled")
	}
	if c.expires[key] != time.Minute {
		t.Errorf("window not set on first hit")
	}
	if key != "rate_limit:ai:openai:2" {
		t.Errorf("unexpected key %q", key)
	}

	c.err = errors.New("conn refused")
	if _, err := rl.Allow(ctx, "other", 3, time.Minute); err == nil {
		t.Fatal("expected error")
	}
}
