package engine

import (
	"context"
	"sync"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// DefaultSweepInterval is how often expired in-memory records are removed.
const DefaultSweepInterval = time.Minute

// MemoryRateStore keeps counters in process memory.
type MemoryRateStore struct {
	mu      sync.Mutex
	records map[string]core.RateLimitRecord
}

// NewMemoryRateStore returns an empty in-memory store.
func NewMemoryRateStore() *MemoryRateStore {
	return &MemoryRateStore{records: make(map[string]core.RateLimitRecord)}
}

// Hit implements RateLimitStore.
func (m *MemoryRateStore) Hit(_ context.Context, key string, window time.Duration, now time.Time) (core.RateLimitRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.records == nil {
		m.records = make(map[string]core.RateLimitRecord)
	}

	record, ok := m.records[key]
	if !ok || record.Expired(now) {
		record = core.RateLimitRecord{Count: 1, ResetAt: now.Add(window)}
	} else {
		record.Count++
	}
	m.records[key] = record
	return record, nil
}

// Sweep removes every record whose window closed at or before now.
// It returns the number of records removed.
func (m *MemoryRateStore) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, record := range m.records {
		if record.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (m *MemoryRateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// RunSweeper sweeps on every tick until ctx is cancelled.
func (m *MemoryRateStore) RunSweeper(ctx context.Context, interval time.Duration, clock func() time.Time) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(clock())
		}
	}
}
