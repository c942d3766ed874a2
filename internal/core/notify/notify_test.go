package notify

import (
	"context"
	"sync"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

func sampleQuote() *core.QuoteRequest {
	pieces := 4
	pallets := 2
	volume := 3.5
	return &core.QuoteRequest{
		ID:          "5f0c1c9e-1111-4ad6-9c8e-000000000001",
		Code:        "QR-20250304-0001",
		TenantID:    core.DefaultTenantID,
		Company:     "Acme Freight",
		ContactName: "Ana",
		Email:       "ana@x.io",
		Phone:       "+1 555 0100",
		Origin:      "Toronto",
		Destination: "Ottawa",
		ShipDate:    "2025-03-10",
		WeightKg:    120.5,
		Volume:      &volume,
		Pieces:      &pieces,
		Pallets:     &pallets,
		Services:    []core.ServiceType{core.ServiceLTL, core.ServiceCold},
		Note:        "Dock <B> only",
		Status:      core.StatusOpen,
		CreatedAt:   time.Date(2025, 3, 4, 9, 30, 0, 0, time.UTC),
	}
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []core.AuditEntry
}

func (m *memoryAudit) AppendAudit(_ context.Context, entry core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) snapshot() []core.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.AuditEntry(nil), m.entries...)
}
