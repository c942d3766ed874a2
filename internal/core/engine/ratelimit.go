package engine

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// QuoteRequestRule is the rule applied to quote request submissions.
var QuoteRequestRule = RateLimitRule{
	Name:   "quote-request",
	Window: 5 * time.Minute,
	Max:    3,
}

// RateLimitRule is a named fixed-window limit.
type RateLimitRule struct {
	Name   string
	Window time.Duration
	Max    int
}

// RateLimitStore holds fixed-window counters.
//
// Hit must atomically either start a new window (count 1, reset at now+window)
// when the key is absent or its window has closed, or increment the existing
// count. It returns the record after the update.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration, now time.Time) (core.RateLimitRecord, error)
}

// RateLimitDecision is the outcome of a rate limit check.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
}

// RateLimiter enforces fixed-window rules over a RateLimitStore.
type RateLimiter struct {
	Store RateLimitStore
	Clock func() time.Time
}

// NewRateLimiter returns a limiter over store using the wall clock.
func NewRateLimiter(store RateLimitStore) *RateLimiter {
	return &RateLimiter{Store: store}
}

// Check counts one request against key under rule.
//
// A store error fails open: the returned decision allows the request and
// reports a fresh window, and the error is returned for logging.
func (r *RateLimiter) Check(ctx context.Context, rule RateLimitRule, key string) (RateLimitDecision, error) {
	now := r.now()
	if r == nil || r.Store == nil {
		return openDecision(rule, now), nil
	}

	record, err := r.Store.Hit(ctx, key, rule.Window, now)
	if err != nil {
		return openDecision(rule, now), fmt.Errorf("rate limit store: %w", err)
	}

	decision := RateLimitDecision{
		Allowed:   record.Count <= rule.Max,
		Limit:     rule.Max,
		Remaining: max(0, rule.Max-record.Count),
		ResetAt:   record.ResetAt,
	}
	if !decision.Allowed {
		decision.RetryAfter = retryAfterSeconds(record.ResetAt.Sub(now))
	}
	return decision, nil
}

func (r *RateLimiter) now() time.Time {
	if r != nil && r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func openDecision(rule RateLimitRule, now time.Time) RateLimitDecision {
	return RateLimitDecision{
		Allowed:   true,
		Limit:     rule.Max,
		Remaining: max(0, rule.Max-1),
		ResetAt:   now.Add(rule.Window),
	}
}

func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

// IPKey is the default key for rule, derived from the caller's address.
func IPKey(rule RateLimitRule, ip string) string {
	return rule.Name + ":" + normalizeIP(ip)
}

// QuoteRequestKey keys quote submissions by email when present, else by IP.
func QuoteRequestKey(email, ip string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email != "" {
		return QuoteRequestRule.Name + ":email:" + email
	}
	return QuoteRequestRule.Name + ":ip:" + normalizeIP(ip)
}

func normalizeIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return "unknown"
	}
	return ip
}
