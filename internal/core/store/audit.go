package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// AuditFilter narrows ListAudit results. Zero values match everything.
type AuditFilter struct {
	EntityID  string
	Operation core.AuditOperation
	Limit     int
}

// AppendAudit writes entry to the audit trail.
func (s *Store) AppendAudit(ctx context.Context, entry core.AuditEntry) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	var extra sql.NullString
	if len(entry.ExtraData) > 0 {
		payload, err := json.Marshal(entry.ExtraData)
		if err != nil {
			return fmt.Errorf("encode audit extra data: %w", err)
		}
		extra = sql.NullString{String: string(payload), Valid: true}
	}

	tenant := entry.TenantID
	if tenant == "" {
		tenant = core.DefaultTenantID
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := s.rebind(`INSERT INTO audit_logs (
		tenant_id, entity_type, entity_id, operation, actor_id, actor_type,
		ip, user_agent, extra_data, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.DB.ExecContext(ctx, query,
		tenant,
		entry.EntityType,
		entry.EntityID,
		string(entry.Operation),
		nullString(entry.ActorID),
		string(entry.ActorType),
		nullString(entry.IP),
		nullString(entry.UserAgent),
		extra,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns audit entries oldest first.
func (s *Store) ListAudit(ctx context.Context, filter AuditFilter) ([]core.AuditEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	var (
		clauses []string
		args    []any
	)
	if id := strings.TrimSpace(filter.EntityID); id != "" {
		clauses = append(clauses, "entity_id = ?")
		args = append(args, id)
	}
	if filter.Operation != "" {
		clauses = append(clauses, "operation = ?")
		args = append(args, string(filter.Operation))
	}

	query := `SELECT id, tenant_id, entity_type, entity_id, operation, actor_id, actor_type,
		ip, user_agent, extra_data, created_at FROM audit_logs`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var entries []core.AuditEntry
	for rows.Next() {
		var (
			entry     core.AuditEntry
			operation string
			actorID   sql.NullString
			actorType string
			ip        sql.NullString
			userAgent sql.NullString
			extra     sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&entry.ID, &entry.TenantID, &entry.EntityType, &entry.EntityID,
			&operation, &actorID, &actorType, &ip, &userAgent, &extra, &createdAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Operation = core.AuditOperation(operation)
		entry.ActorID = actorID.String
		entry.ActorType = core.ActorType(actorType)
		entry.IP = ip.String
		entry.UserAgent = userAgent.String
		entry.CreatedAt = time.UnixMilli(createdAt).UTC()
		if extra.Valid && extra.String != "" {
			if err := json.Unmarshal([]byte(extra.String), &entry.ExtraData); err != nil {
				return nil, fmt.Errorf("decode audit extra data: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
