package core

import "time"

// RateLimitRecord is the fixed-window counter kept for one key.
type RateLimitRecord struct {
	Count   int
	ResetAt time.Time
}

// Expired reports whether the window has closed at now.
func (r RateLimitRecord) Expired(now time.Time) bool {
	return !now.Before(r.ResetAt)
}
