package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/core"
	"github.com/apony/quoteintake/internal/metrics"
	"github.com/apony/quoteintake/internal/observability"
)

// maxCodeAttempts bounds how many codes are drawn when a code collides.
const maxCodeAttempts = 3

// ErrPersistence wraps any failure to store a quote request.
var ErrPersistence = errors.New("failed to persist quote request")

// RateLimitError is returned when a submission exceeds its rate limit.
type RateLimitError struct {
	Decision RateLimitDecision
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Too many requests, please retry in %d seconds", e.Decision.RetryAfter)
}

// QuoteRepository persists quote requests. InsertQuoteRequest returns an error
// wrapping core.ErrDuplicateCode when the code is taken.
type QuoteRepository interface {
	InsertQuoteRequest(ctx context.Context, q *core.QuoteRequest) error
}

// AuditSink appends entries to the audit trail.
type AuditSink interface {
	AppendAudit(ctx context.Context, entry core.AuditEntry) error
}

// Notifier schedules a notification for a stored request without blocking.
// Enqueue reports whether the request was accepted.
type Notifier interface {
	Enqueue(q *core.QuoteRequest) bool
}

// SubmitResult is returned by Submit. Decision is always populated once the
// rate limiter ran, including when Submit returns an error.
type SubmitResult struct {
	Decision RateLimitDecision
	Quote    *core.QuoteRequest
}

// Intake runs the quote request pipeline: rate limit, validate, persist,
// audit, then schedule notification.
type Intake struct {
	Limiter  *RateLimiter
	Rule     RateLimitRule
	Codes    *SequenceGenerator
	Repo     QuoteRepository
	Audit    AuditSink
	Notifier Notifier
	Logger   *logging.Logger
	Clock    func() time.Time
	NewID    func() string
}

// Admit applies the quote request rate limit for the caller identified by
// email (preferred) or ip. A denial is returned as *RateLimitError.
func (i *Intake) Admit(ctx context.Context, email, ip string) (RateLimitDecision, error) {
	rule := i.rule()
	key := QuoteRequestKey(email, ip)

	decision, err := i.Limiter.Check(ctx, rule, key)
	if err != nil {
		i.logWarn("rate limit check failed, allowing request", zap.String("rule", rule.Name), zap.Error(err))
	}
	metrics.RecordRateLimitDecision(rule.Name, decision.Allowed)

	if !decision.Allowed {
		i.logWarn("rate limit exceeded",
			zap.String("rule", rule.Name),
			zap.String("key", key),
			zap.Int("retry_after", decision.RetryAfter))
		return decision, &RateLimitError{Decision: decision}
	}
	return decision, nil
}

// Submit runs the full pipeline for sub. Errors are *RateLimitError,
// *ValidationError, or wrap ErrPersistence.
func (i *Intake) Submit(ctx context.Context, sub core.Submission, meta core.RequestMeta) (*SubmitResult, error) {
	ctx, span := observability.StartSpan(ctx, "intake.submit",
		attribute.Int("services", len(sub.Services)))
	defer span.End()

	result := &SubmitResult{}

	decision, err := i.Admit(ctx, sub.Email, meta.IP)
	result.Decision = decision
	if err != nil {
		metrics.RecordSubmission("rate_limited")
		span.SetStatus(codes.Error, "rate limited")
		return result, err
	}

	if err := ValidateSubmission(sub); err != nil {
		metrics.RecordSubmission("invalid")
		span.SetStatus(codes.Error, "invalid")
		return result, err
	}

	quote, err := i.persist(ctx, sub, meta)
	if err != nil {
		metrics.RecordSubmission("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		i.logError("failed to persist quote request", zap.Error(err))
		return result, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	result.Quote = quote
	span.SetAttributes(attribute.String("quote.code", quote.Code))

	i.auditCreate(ctx, quote, meta)

	if i.Notifier != nil && !i.Notifier.Enqueue(quote) {
		i.logError("notification not scheduled", zap.String("quote_id", quote.ID), zap.String("code", quote.Code))
	}

	metrics.RecordSubmission("created")
	i.logInfo("quote request created", zap.String("quote_id", quote.ID), zap.String("code", quote.Code))
	return result, nil
}

func (i *Intake) persist(ctx context.Context, sub core.Submission, meta core.RequestMeta) (*core.QuoteRequest, error) {
	if i.Repo == nil {
		return nil, errors.New("quote repository not configured")
	}

	now := i.now()
	quote := newQuoteRequest(sub, meta, now)
	quote.ID = i.newID()

	var lastErr error
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := i.Codes.Next(ctx)
		if err != nil {
			return nil, err
		}
		quote.Code = code

		err = i.Repo.InsertQuoteRequest(ctx, quote)
		if err == nil {
			return quote, nil
		}
		if !errors.Is(err, core.ErrDuplicateCode) {
			return nil, err
		}
		lastErr = err
		i.logWarn("quote request code collided, drawing next", zap.String("code", code))
	}
	return nil, fmt.Errorf("no free code after %d attempts: %w", maxCodeAttempts, lastErr)
}

func (i *Intake) auditCreate(ctx context.Context, quote *core.QuoteRequest, meta core.RequestMeta) {
	if i.Audit == nil {
		return
	}

	actor := core.ActorAnonymous
	if meta.ActorID != "" {
		actor = core.ActorUser
	}

	entry := core.AuditEntry{
		TenantID:   quote.TenantID,
		EntityType: core.EntityQuoteRequest,
		EntityID:   quote.ID,
		Operation:  core.AuditCreate,
		ActorID:    meta.ActorID,
		ActorType:  actor,
		IP:         meta.IP,
		UserAgent:  meta.UserAgent,
		ExtraData: map[string]any{
			"code":  quote.Code,
			"email": quote.Email,
		},
		CreatedAt: quote.CreatedAt,
	}
	if err := i.Audit.AppendAudit(ctx, entry); err != nil {
		i.logError("failed to write audit entry",
			zap.String("operation", string(core.AuditCreate)),
			zap.String("quote_id", quote.ID),
			zap.Error(err))
	}
}

func newQuoteRequest(sub core.Submission, meta core.RequestMeta, now time.Time) *core.QuoteRequest {
	tenant := meta.TenantID
	if tenant == "" {
		tenant = core.DefaultTenantID
	}
	return &core.QuoteRequest{
		TenantID:    tenant,
		CustomerID:  meta.CustomerID,
		Company:     strings.TrimSpace(sub.Company),
		ContactName: strings.TrimSpace(sub.ContactName),
		Email:       strings.TrimSpace(sub.Email),
		Phone:       strings.TrimSpace(sub.Phone),
		Origin:      strings.TrimSpace(sub.Origin),
		Destination: strings.TrimSpace(sub.Destination),
		ShipDate:    strings.TrimSpace(sub.ShipDate),
		WeightKg:    *sub.WeightKg,
		Volume:      sub.Volume,
		Pieces:      sub.Pieces,
		Pallets:     sub.Pallets,
		Services:    append([]core.ServiceType(nil), sub.Services...),
		Note:        sub.Note,
		Status:      core.StatusOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (i *Intake) rule() RateLimitRule {
	if i.Rule.Name == "" {
		return QuoteRequestRule
	}
	return i.Rule
}

func (i *Intake) now() time.Time {
	if i.Clock != nil {
		return i.Clock()
	}
	return time.Now().UTC()
}

func (i *Intake) newID() string {
	if i.NewID != nil {
		return i.NewID()
	}
	return uuid.New().String()
}

func (i *Intake) logger() *logging.Logger {
	if i.Logger != nil {
		return i.Logger
	}
	return observability.ComponentLogger()
}

func (i *Intake) logInfo(msg string, fields ...zap.Field) {
	if l := i.logger(); l != nil {
		l.Info(msg, fields...)
	}
}

func (i *Intake) logWarn(msg string, fields ...zap.Field) {
	if l := i.logger(); l != nil {
		l.Warn(msg, fields...)
	}
}

func (i *Intake) logError(msg string, fields ...zap.Field) {
	if l := i.logger(); l != nil {
		l.Error(msg, fields...)
	}
}
