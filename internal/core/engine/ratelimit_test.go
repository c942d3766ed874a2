package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/core"
)

type failingRateStore struct{}

func (failingRateStore) Hit(context.Context, string, time.Duration, time.Time) (core.RateLimitRecord, error) {
	return core.RateLimitRecord{}, errors.New("connection refused")
}

func TestRateLimiterFixedWindow(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: NewMemoryRateStore(),
		Clock: func() time.Time { return now },
	}
	rule := RateLimitRule{Name: "quote-request", Window: 5 * time.Minute, Max: 3}
	key := QuoteRequestKey("a@b.co", "")

	for i := 1; i <= 3; i++ {
		decision, err := limiter.Check(context.Background(), rule, key)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d", i)
		require.Equal(t, 3, decision.Limit)
		require.Equal(t, 3-i, decision.Remaining)
		require.Equal(t, now.Add(5*time.Minute), decision.ResetAt)
	}

	now = now.Add(2 * time.Minute)
	decision, err := limiter.Check(context.Background(), rule, key)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Remaining)
	require.Equal(t, 180, decision.RetryAfter)

	// Window boundary: now == resetAt starts a fresh window.
	now = time.Date(2025, 3, 4, 10, 5, 0, 0, time.UTC)
	decision, err = limiter.Check(context.Background(), rule, key)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 2, decision.Remaining)
	require.Equal(t, now.Add(5*time.Minute), decision.ResetAt)
}

func TestRateLimiterRetryAfterRoundsUp(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{
		Store: NewMemoryRateStore(),
		Clock: func() time.Time { return now },
	}
	rule := RateLimitRule{Name: "r", Window: time.Minute, Max: 1}

	_, err := limiter.Check(context.Background(), rule, "k")
	require.NoError(t, err)

	now = now.Add(59*time.Second + 500*time.Millisecond)
	decision, err := limiter.Check(context.Background(), rule, "k")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 1, decision.RetryAfter)
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryRateStore())
	rule := RateLimitRule{Name: "r", Window: time.Minute, Max: 1}

	first, err := limiter.Check(context.Background(), rule, QuoteRequestKey("one@example.com", "1.1.1.1"))
	require.NoError(t, err)
	second, err := limiter.Check(context.Background(), rule, QuoteRequestKey("two@example.com", "1.1.1.1"))
	require.NoError(t, err)

	assert.True(t, first.Allowed)
	assert.True(t, second.Allowed)
}

func TestRateLimiterFailsOpen(t *testing.T) {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	limiter := &RateLimiter{Store: failingRateStore{}, Clock: func() time.Time { return now }}

	decision, err := limiter.Check(context.Background(), QuoteRequestRule, "k")
	require.Error(t, err)
	require.True(t, decision.Allowed)
	require.Equal(t, 3, decision.Limit)
	require.Equal(t, now.Add(5*time.Minute), decision.ResetAt)
}

func TestRateLimiterConcurrentHits(t *testing.T) {
	limiter := NewRateLimiter(NewMemoryRateStore())
	rule := RateLimitRule{Name: "r", Window: time.Hour, Max: 10}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Check(context.Background(), rule, "shared")
			if err == nil && decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 10, allowed)
}

func TestQuoteRequestKey(t *testing.T) {
	cases := []struct {
		name  string
		email string
		ip    string
		want  string
	}{
		{name: "email wins", email: "User@Example.com ", ip: "10.0.0.1", want: "quote-request:email:user@example.com"},
		{name: "ip fallback", email: "", ip: "10.0.0.1", want: "quote-request:ip:10.0.0.1"},
		{name: "unknown caller", email: " ", ip: "", want: "quote-request:ip:unknown"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, QuoteRequestKey(tc.email, tc.ip))
		})
	}

	require.Equal(t, "login:unknown", IPKey(RateLimitRule{Name: "login"}, ""))
}

func TestMemoryRateStoreSweep(t *testing.T) {
	store := NewMemoryRateStore()
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

	_, err := store.Hit(context.Background(), "short", time.Minute, now)
	require.NoError(t, err)
	_, err = store.Hit(context.Background(), "long", time.Hour, now)
	require.NoError(t, err)

	require.Equal(t, 0, store.Sweep(now.Add(30*time.Second)))
	require.Equal(t, 1, store.Sweep(now.Add(time.Minute)))
	require.Equal(t, 1, store.Len())
}

func TestMemoryRateStoreRunSweeperStops(t *testing.T) {
	store := NewMemoryRateStore()
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.Hit(context.Background(), "k", time.Second, past)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, 5*time.Millisecond, nil)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
