package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// NextSequence atomically draws the next number for day (YYYYMMDD).
//
// The first draw of a day seeds the counter from the codes already stored
// with that day's prefix, so a fresh counter table never reissues a code.
func (s *Store) NextSequence(ctx context.Context, day string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	query := s.rebind(`INSERT INTO quote_sequences (day, counter)
		VALUES (?, (SELECT COUNT(*) FROM quote_requests WHERE code LIKE ?) + 1)
		ON CONFLICT(day) DO UPDATE SET counter = quote_sequences.counter + 1
		RETURNING counter`)

	var counter int64
	if err := s.DB.QueryRowContext(ctx, query, day, "QR-"+day+"-%").Scan(&counter); err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}
	return int(counter), nil
}

// CountCodesWithPrefix counts stored requests whose code starts with prefix.
func (s *Store) CountCodesWithPrefix(ctx context.Context, prefix string) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}

	var count int64
	query := s.rebind(`SELECT COUNT(*) FROM quote_requests WHERE code LIKE ?`)
	if err := s.DB.QueryRowContext(ctx, query, prefix+"%").Scan(&count); err != nil {
		return 0, fmt.Errorf("count codes: %w", err)
	}
	return int(count), nil
}

// InsertQuoteRequest stores q. A taken code yields an error wrapping
// core.ErrDuplicateCode.
func (s *Store) InsertQuoteRequest(ctx context.Context, q *core.QuoteRequest) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if q == nil {
		return errors.New("quote request is required")
	}

	services, err := json.Marshal(q.Services)
	if err != nil {
		return fmt.Errorf("encode services: %w", err)
	}

	query := s.rebind(`INSERT INTO quote_requests (
		id, code, tenant_id, customer_id, company, contact_name, email, phone,
		origin, destination, ship_date, weight_kg, volume, pieces, pallets,
		services, note, status, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = s.DB.ExecContext(ctx, query,
		q.ID,
		q.Code,
		q.TenantID,
		nullString(q.CustomerID),
		nullString(q.Company),
		q.ContactName,
		q.Email,
		nullString(q.Phone),
		q.Origin,
		q.Destination,
		q.ShipDate,
		q.WeightKg,
		nullFloat(q.Volume),
		nullInt(q.Pieces),
		nullInt(q.Pallets),
		string(services),
		nullString(q.Note),
		string(q.Status),
		q.CreatedAt.UnixMilli(),
		q.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert quote request %s: %w", q.Code, core.ErrDuplicateCode)
		}
		return fmt.Errorf("insert quote request: %w", err)
	}
	return nil
}

// GetQuoteRequest loads a quote request by id. Missing ids return core.ErrNotFound.
func (s *Store) GetQuoteRequest(ctx context.Context, id string) (*core.QuoteRequest, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}

	query := s.rebind(`SELECT id, code, tenant_id, customer_id, company, contact_name, email, phone,
		origin, destination, ship_date, weight_kg, volume, pieces, pallets,
		services, note, status, created_at, updated_at
		FROM quote_requests WHERE id = ?`)

	var (
		q          core.QuoteRequest
		customerID sql.NullString
		company    sql.NullString
		phone      sql.NullString
		volume     sql.NullFloat64
		pieces     sql.NullInt64
		pallets    sql.NullInt64
		services   string
		note       sql.NullString
		status     string
		createdAt  int64
		updatedAt  int64
	)
	err := s.DB.QueryRowContext(ctx, query, id).Scan(
		&q.ID, &q.Code, &q.TenantID, &customerID, &company, &q.ContactName, &q.Email, &phone,
		&q.Origin, &q.Destination, &q.ShipDate, &q.WeightKg, &volume, &pieces, &pallets,
		&services, &note, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quote request %s: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("load quote request: %w", err)
	}

	if err := json.Unmarshal([]byte(services), &q.Services); err != nil {
		return nil, fmt.Errorf("decode services: %w", err)
	}
	q.CustomerID = customerID.String
	q.Company = company.String
	q.Phone = phone.String
	q.Note = note.String
	q.Status = core.Status(status)
	if volume.Valid {
		v := volume.Float64
		q.Volume = &v
	}
	q.Pieces = intFromNull(pieces)
	q.Pallets = intFromNull(pallets)
	q.CreatedAt = time.UnixMilli(createdAt).UTC()
	q.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &q, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}

func nullInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func intFromNull(value sql.NullInt64) *int {
	if !value.Valid {
		return nil
	}
	v := int(value.Int64)
	return &v
}
