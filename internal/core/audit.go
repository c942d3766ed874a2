package core

import "time"

// Entity types written to the audit trail.
const EntityQuoteRequest = "quote_request"

// AuditOperation names an audited action.
type AuditOperation string

const (
	AuditCreate               AuditOperation = "create"
	AuditNotifyDispatch       AuditOperation = "notify_dispatch"
	AuditNotifyDispatchFailed AuditOperation = "notify_dispatch_failed"
)

// ActorType identifies who caused an audited action.
type ActorType string

const (
	ActorAnonymous ActorType = "anonymous"
	ActorUser      ActorType = "user"
	ActorSystem    ActorType = "system"
)

// AuditEntry is one row of the audit trail.
type AuditEntry struct {
	ID         int64          `json:"id"`
	TenantID   string         `json:"tenantId"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Operation  AuditOperation `json:"operation"`
	ActorID    string         `json:"actorId,omitempty"`
	ActorType  ActorType      `json:"actorType"`
	IP         string         `json:"ip,omitempty"`
	UserAgent  string         `json:"userAgent,omitempty"`
	ExtraData  map[string]any `json:"extraData,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// NotifyMethod identifies a notification transport.
type NotifyMethod string

const (
	NotifyCloudFunction NotifyMethod = "cloud_function"
	NotifySMTP          NotifyMethod = "smtp"
)

// NotifyOutcome is the result of a dispatch attempt.
type NotifyOutcome string

const (
	NotifySuccess NotifyOutcome = "success"
	NotifyFailure NotifyOutcome = "failure"
	NotifySkipped NotifyOutcome = "skipped"
)

// TransportAttempt records one transport's try within a dispatch.
type TransportAttempt struct {
	Method            NotifyMethod `json:"method"`
	ProviderMessageID string       `json:"messageId,omitempty"`
	Error             string       `json:"error,omitempty"`
}

// NotificationAttempt is the result of one dispatch pass over the transports.
type NotificationAttempt struct {
	QuoteRequestID    string             `json:"quoteRequestId"`
	Method            NotifyMethod       `json:"method,omitempty"`
	Outcome           NotifyOutcome      `json:"outcome"`
	Recipients        []string           `json:"recipients"`
	ProviderMessageID string             `json:"messageId,omitempty"`
	ErrorDetail       string             `json:"error,omitempty"`
	Attempts          []TransportAttempt `json:"attempts,omitempty"`
	Timestamp         time.Time          `json:"timestamp"`
}

// AuditEntry converts the attempt to its audit trail representation.
func (a NotificationAttempt) AuditEntry(tenantID string) AuditEntry {
	op := AuditNotifyDispatch
	extra := map[string]any{
		"to": a.Recipients,
	}
	if a.Method != "" {
		extra["method"] = string(a.Method)
	}
	if a.Outcome == NotifySuccess {
		extra["messageId"] = a.ProviderMessageID
	} else {
		op = AuditNotifyDispatchFailed
		extra["error"] = a.ErrorDetail
		if len(a.Attempts) > 0 {
			extra["attempts"] = a.Attempts
		}
	}
	if tenantID == "" {
		tenantID = DefaultTenantID
	}
	return AuditEntry{
		TenantID:   tenantID,
		EntityType: EntityQuoteRequest,
		EntityID:   a.QuoteRequestID,
		Operation:  op,
		ActorType:  ActorSystem,
		ExtraData:  extra,
		CreatedAt:  a.Timestamp,
	}
}
