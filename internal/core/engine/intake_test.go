package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/apony/quoteintake/internal/core"
)

type memoryQuoteRepo struct {
	mu      sync.Mutex
	byCode  map[string]*core.QuoteRequest
	taken   map[string]bool
	failErr error
}

func (m *memoryQuoteRepo) InsertQuoteRequest(_ context.Context, q *core.QuoteRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	if m.byCode == nil {
		m.byCode = make(map[string]*core.QuoteRequest)
	}
	if m.taken[q.Code] || m.byCode[q.Code] != nil {
		return fmt.Errorf("insert %s: %w", q.Code, core.ErrDuplicateCode)
	}
	copied := *q
	m.byCode[q.Code] = &copied
	return nil
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
	err     error
}

func (m *memoryAudit) AppendAudit(_ context.Context, entry core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	queued []*core.QuoteRequest
	reject bool
}

func (r *recordingNotifier) Enqueue(q *core.QuoteRequest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.queued = append(r.queued, q)
	return true
}

type intakeFixture struct {
	intake   *Intake
	repo     *memoryQuoteRepo
	audit    *memoryAudit
	notifier *recordingNotifier
	now      time.Time
}

func newIntakeFixture() *intakeFixture {
	f := &intakeFixture{
		repo:     &memoryQuoteRepo{},
		audit:    &memoryAudit{},
		notifier: &recordingNotifier{},
		now:      time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }
	ids := 0
	f.intake = &Intake{
		Limiter:  &RateLimiter{Store: NewMemoryRateStore(), Clock: clock},
		Rule:     QuoteRequestRule,
		Codes:    &SequenceGenerator{Counter: &memorySequenceCounter{}, Clock: clock},
		Repo:     f.repo,
		Audit:    f.audit,
		Notifier: f.notifier,
		Clock:    clock,
		NewID: func() string {
			ids++
			return fmt.Sprintf("quote-%d", ids)
		},
	}
	return f
}

func TestIntakeSubmitCreatesQuoteRequest(t *testing.T) {
	f := newIntakeFixture()

	result, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{IP: "203.0.113.7", UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)

	require.Equal(t, "quote-1", result.Quote.ID)
	require.Equal(t, "QR-20250304-0001", result.Quote.Code)
	require.Equal(t, core.StatusOpen, result.Quote.Status)
	require.Equal(t, core.DefaultTenantID, result.Quote.TenantID)
	require.Equal(t, core.Summary{ID: "quote-1", Code: "QR-20250304-0001", Status: core.StatusOpen}, result.Quote.Summary())

	require.True(t, result.Decision.Allowed)
	require.Equal(t, 2, result.Decision.Remaining)

	require.Len(t, f.audit.entries, 1)
	entry := f.audit.entries[0]
	require.Equal(t, core.AuditCreate, entry.Operation)
	require.Equal(t, core.ActorAnonymous, entry.ActorType)
	require.Equal(t, "203.0.113.7", entry.IP)
	require.Equal(t, "QR-20250304-0001", entry.ExtraData["code"])

	require.Len(t, f.notifier.queued, 1)
	require.Equal(t, "quote-1", f.notifier.queued[0].ID)
}

func TestIntakeSubmitRateLimitsBeforeValidation(t *testing.T) {
	f := newIntakeFixture()
	sub := validSubmission()

	for i := 0; i < 3; i++ {
		_, err := f.intake.Submit(context.Background(), sub, core.RequestMeta{})
		require.NoError(t, err)
	}

	invalid := sub
	invalid.Consent = false
	result, err := f.intake.Submit(context.Background(), invalid, core.RequestMeta{})

	var rlErr *RateLimitError
	require.ErrorAs(t, err, &rlErr)
	require.False(t, result.Decision.Allowed)
	require.Equal(t, 300, rlErr.Decision.RetryAfter)
	require.Equal(t, "Too many requests, please retry in 300 seconds", rlErr.Error())
	require.Len(t, f.repo.byCode, 3)
	require.Len(t, f.notifier.queued, 3)
}

func TestIntakeSubmitValidationFailureHasNoSideEffects(t *testing.T) {
	f := newIntakeFixture()
	sub := validSubmission()
	sub.Consent = false

	result, err := f.intake.Submit(context.Background(), sub, core.RequestMeta{})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, RuleConsent, verr.Rule)
	require.True(t, result.Decision.Allowed)
	require.Empty(t, f.repo.byCode)
	require.Empty(t, f.audit.entries)
	require.Empty(t, f.notifier.queued)
}

func TestIntakeSubmitPersistenceFailure(t *testing.T) {
	f := newIntakeFixture()
	f.repo.failErr = errors.New("disk full")

	_, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{})
	require.ErrorIs(t, err, ErrPersistence)
	require.Empty(t, f.audit.entries)
	require.Empty(t, f.notifier.queued)
}

func TestIntakeSubmitRetriesCollidingCode(t *testing.T) {
	f := newIntakeFixture()
	f.repo.taken = map[string]bool{"QR-20250304-0001": true}

	result, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "QR-20250304-0002", result.Quote.Code)
}

func TestIntakeSubmitGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newIntakeFixture()
	f.repo.taken = map[string]bool{
		"QR-20250304-0001": true,
		"QR-20250304-0002": true,
		"QR-20250304-0003": true,
	}

	_, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{})
	require.ErrorIs(t, err, ErrPersistence)
	require.ErrorIs(t, err, core.ErrDuplicateCode)
}

func TestIntakeSubmitAuditFailureDoesNotFailRequest(t *testing.T) {
	f := newIntakeFixture()
	f.audit.err = errors.New("audit table locked")

	result, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)
	require.Len(t, f.notifier.queued, 1)
}

func TestIntakeSubmitRejectedEnqueueStillSucceeds(t *testing.T) {
	f := newIntakeFixture()
	f.notifier.reject = true

	result, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{})
	require.NoError(t, err)
	require.NotNil(t, result.Quote)
}

func TestIntakeSubmitAuthenticatedActor(t *testing.T) {
	f := newIntakeFixture()

	_, err := f.intake.Submit(context.Background(), validSubmission(), core.RequestMeta{
		TenantID: "tenant-9",
		ActorID:  "user-1",
	})
	require.NoError(t, err)
	require.Equal(t, core.ActorUser, f.audit.entries[0].ActorType)
	require.Equal(t, "tenant-9", f.audit.entries[0].TenantID)
}
