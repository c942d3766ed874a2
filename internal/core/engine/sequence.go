package engine

import (
	"context"
	"fmt"
	"time"
)

// CodePrefix starts every quote request code.
const CodePrefix = "QR"

// SequenceCounter hands out per-day sequence numbers.
//
// NextSequence must be atomic: two concurrent calls for the same day never
// return the same number, and numbers are never handed out twice.
type SequenceCounter interface {
	NextSequence(ctx context.Context, day string) (int, error)
}

// SequenceGenerator produces human-readable codes of the form QR-YYYYMMDD-NNNN.
type SequenceGenerator struct {
	Counter SequenceCounter
	Clock   func() time.Time
}

// NewSequenceGenerator returns a generator over counter using the wall clock.
func NewSequenceGenerator(counter SequenceCounter) *SequenceGenerator {
	return &SequenceGenerator{Counter: counter}
}

// Next returns the next code for the current UTC day.
func (g *SequenceGenerator) Next(ctx context.Context) (string, error) {
	if g == nil || g.Counter == nil {
		return "", fmt.Errorf("sequence counter not configured")
	}
	day := DayKey(g.now())
	seq, err := g.Counter.NextSequence(ctx, day)
	if err != nil {
		return "", fmt.Errorf("next sequence for %s: %w", day, err)
	}
	return FormatCode(day, seq), nil
}

func (g *SequenceGenerator) now() time.Time {
	if g.Clock != nil {
		return g.Clock()
	}
	return time.Now()
}

// DayKey formats t's UTC date as YYYYMMDD.
func DayKey(t time.Time) string {
	return t.UTC().Format("20060102")
}

// DayCodePrefix is the code prefix shared by every request of day.
func DayCodePrefix(day string) string {
	return CodePrefix + "-" + day + "-"
}

// FormatCode renders a code, zero-padding seq to at least four digits.
func FormatCode(day string, seq int) string {
	return fmt.Sprintf("%s%04d", DayCodePrefix(day), seq)
}
