package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/apony/quoteintake/internal/core"
	"github.com/apony/quoteintake/internal/metrics"
	"github.com/apony/quoteintake/internal/observability"
)

const (
	DefaultQueueSize = 256
	DefaultWorkers   = 2

	auditTimeout = 5 * time.Second
)

// ErrNoTransport means every transport in the chain was unconfigured.
var ErrNoTransport = errors.New("no notification transport configured")

// AuditSink appends entries to the audit trail.
type AuditSink interface {
	AppendAudit(ctx context.Context, entry core.AuditEntry) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Recipients  []string
	FrontendURL string
	QueueSize   int
	Workers     int
}

// Dispatcher delivers notifications through an ordered transport chain,
// stopping at the first success. Enqueued work runs on background workers;
// failures are audited and logged, never returned to submitters.
type Dispatcher struct {
	transports  []Transport
	audit       AuditSink
	logger      *logging.Logger
	frontendURL string
	workers     int
	clock       func() time.Time

	queue chan *core.QuoteRequest

	recipientsMu sync.RWMutex
	recipients   []string

	// closeMu guards closed and the close of queue against concurrent Enqueue.
	closeMu sync.RWMutex
	closed  bool
	started bool

	wg         sync.WaitGroup
	cancelWork context.CancelFunc
}

// NewDispatcher builds a dispatcher over transports, tried in order.
func NewDispatcher(cfg DispatcherConfig, audit AuditSink, logger *logging.Logger, transports ...Transport) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if logger == nil {
		logger = observability.ComponentLogger()
	}
	d := &Dispatcher{
		transports:  transports,
		audit:       audit,
		logger:      logger,
		frontendURL: cfg.FrontendURL,
		workers:     cfg.Workers,
		queue:       make(chan *core.QuoteRequest, cfg.QueueSize),
		clock:       func() time.Time { return time.Now().UTC() },
	}
	d.SetRecipients(cfg.Recipients)
	return d
}

// SetRecipients replaces the recipient list used by later dispatches.
func (d *Dispatcher) SetRecipients(recipients []string) {
	clean := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if r = strings.TrimSpace(r); r != "" {
			clean = append(clean, r)
		}
	}
	d.recipientsMu.Lock()
	d.recipients = clean
	d.recipientsMu.Unlock()
}

// Recipients returns a copy of the current recipient list.
func (d *Dispatcher) Recipients() []string {
	d.recipientsMu.RLock()
	defer d.recipientsMu.RUnlock()
	return append([]string(nil), d.recipients...)
}

// Start launches the workers. Work continues until Stop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	d.cancelWork = cancel

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(workCtx, i)
	}
}

// Enqueue schedules a notification without blocking. It returns false when
// the dispatcher is stopped or the queue is full; the request is then dropped.
func (d *Dispatcher) Enqueue(q *core.QuoteRequest) bool {
	if q == nil {
		return false
	}

	d.closeMu.RLock()
	defer d.closeMu.RUnlock()
	if d.closed {
		d.logError("dispatcher stopped, notification dropped", zap.String("quote_id", q.ID))
		metrics.RecordDispatchDropped()
		return false
	}

	select {
	case d.queue <- q:
		metrics.SetDispatchQueueDepth(len(d.queue))
		return true
	default:
		d.logError("notification queue full, notification dropped",
			zap.String("quote_id", q.ID),
			zap.String("code", q.Code),
			zap.Int("capacity", cap(d.queue)))
		metrics.RecordDispatchDropped()
		return false
	}
}

// QueueDepth returns the number of waiting notifications.
func (d *Dispatcher) QueueDepth() int {
	return len(d.queue)
}

// QueueCapacity returns the queue size.
func (d *Dispatcher) QueueCapacity() int {
	return cap(d.queue)
}

// Stop stops accepting work and waits for queued notifications to drain.
// If ctx ends first, in-flight sends are cancelled and ctx.Err is returned.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.closeMu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancelWork()
		return nil
	case <-ctx.Done():
		d.cancelWork()
		<-done
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for q := range d.queue {
		metrics.SetDispatchQueueDepth(len(d.queue))
		d.runJob(ctx, id, q)
	}
}

func (d *Dispatcher) runJob(ctx context.Context, worker int, q *core.QuoteRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordPanic("dispatch")
			d.logError("notification dispatch panicked",
				zap.Int("worker", worker),
				zap.String("quote_id", q.ID),
				zap.Any("panic", rec))
		}
	}()
	d.Dispatch(ctx, q)
}

// Dispatch delivers a notification for q synchronously and records the
// outcome in the audit trail. It never returns an error; the attempt
// describes what happened.
func (d *Dispatcher) Dispatch(ctx context.Context, q *core.QuoteRequest) core.NotificationAttempt {
	started := d.clock()
	recipients := d.Recipients()
	attempt := core.NotificationAttempt{
		QuoteRequestID: q.ID,
		Recipients:     recipients,
		Timestamp:      started,
	}

	if len(recipients) == 0 {
		d.logWarn("no notification recipients configured, skipping dispatch",
			zap.String("quote_id", q.ID), zap.String("code", q.Code))
		attempt.Outcome = core.NotifySkipped
		return attempt
	}

	ctx, span := observability.StartSpan(ctx, "notify.dispatch",
		attribute.String("quote.id", q.ID),
		attribute.String("quote.code", q.Code),
		attribute.Int("recipients", len(recipients)))
	defer span.End()

	n := Notification{
		Quote:      q,
		Recipients: recipients,
		Link:       AdminLink(d.frontendURL, q.ID),
	}

	for _, transport := range d.transports {
		if transport == nil || !transport.Configured() {
			continue
		}
		method := transport.Method()
		attempt.Method = method

		receipt, err := d.send(ctx, transport, n)
		if err == nil {
			attempt.Outcome = core.NotifySuccess
			attempt.ProviderMessageID = receipt.MessageID
			attempt.Attempts = append(attempt.Attempts, core.TransportAttempt{
				Method:            method,
				ProviderMessageID: receipt.MessageID,
			})
			d.finish(ctx, q, attempt, started)
			d.logInfo("notification dispatched",
				zap.String("quote_id", q.ID),
				zap.String("method", string(method)),
				zap.String("message_id", receipt.MessageID))
			return attempt
		}

		attempt.Attempts = append(attempt.Attempts, core.TransportAttempt{Method: method, Error: err.Error()})
		d.logWarn("notification transport failed",
			zap.String("quote_id", q.ID),
			zap.String("method", string(method)),
			zap.Error(err))
	}

	attempt.Outcome = core.NotifyFailure
	attempt.ErrorDetail = failureDetail(attempt.Attempts)
	span.SetStatus(codes.Error, attempt.ErrorDetail)
	d.finish(ctx, q, attempt, started)
	d.logError("notification dispatch failed",
		zap.String("quote_id", q.ID),
		zap.String("code", q.Code),
		zap.String("error", attempt.ErrorDetail))
	return attempt
}

func (d *Dispatcher) send(ctx context.Context, transport Transport, n Notification) (receipt Receipt, err error) {
	ctx, span := observability.StartSpan(ctx, "notify.transport",
		attribute.String("method", string(transport.Method())))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.RecordPanic("dispatch")
			err = fmt.Errorf("transport panicked: %v", rec)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return transport.Send(ctx, n)
}

func (d *Dispatcher) finish(ctx context.Context, q *core.QuoteRequest, attempt core.NotificationAttempt, started time.Time) {
	metrics.RecordDispatch(string(attempt.Method), attempt.Outcome == core.NotifySuccess, d.clock().Sub(started))

	if d.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	entry := attempt.AuditEntry(q.TenantID)
	if err := d.audit.AppendAudit(auditCtx, entry); err != nil {
		d.logError("failed to write audit entry",
			zap.String("operation", string(entry.Operation)),
			zap.String("quote_id", q.ID),
			zap.Error(err))
	}
}

func failureDetail(attempts []core.TransportAttempt) string {
	if len(attempts) == 0 {
		return ErrNoTransport.Error()
	}
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Method, a.Error))
	}
	return strings.Join(parts, "; ")
}

func (d *Dispatcher) logInfo(msg string, fields ...zap.Field) {
	if d.logger != nil {
		d.logger.Info(msg, fields...)
	}
}

func (d *Dispatcher) logWarn(msg string, fields ...zap.Field) {
	if d.logger != nil {
		d.logger.Warn(msg, fields...)
	}
}

func (d *Dispatcher) logError(msg string, fields ...zap.Field) {
	if d.logger != nil {
		d.logger.Error(msg, fields...)
	}
}
