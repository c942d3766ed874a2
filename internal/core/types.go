package core

import (
	"errors"
	"time"
)

// ServiceType identifies a freight service a caller can request a quote for.
type ServiceType string

const (
	ServiceFTL     ServiceType = "FTL"
	ServiceLTL     ServiceType = "LTL"
	ServiceAir     ServiceType = "AIR"
	ServiceSea     ServiceType = "SEA"
	ServiceExpress ServiceType = "EXPRESS"
	ServiceCold    ServiceType = "COLD"
)

// ServiceTypes lists every accepted service type in display order.
var ServiceTypes = []ServiceType{
	ServiceFTL,
	ServiceLTL,
	ServiceAir,
	ServiceSea,
	ServiceExpress,
	ServiceCold,
}

// Valid reports whether s is one of the enumerated service types.
func (s ServiceType) Valid() bool {
	for _, candidate := range ServiceTypes {
		if s == candidate {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of a quote request.
type Status string

const (
	StatusOpen      Status = "open"
	StatusPending   Status = "pending"
	StatusContacted Status = "contacted"
	StatusClosed    Status = "closed"
)

// DefaultTenantID is recorded for anonymous submissions.
const DefaultTenantID = "00000000-0000-0000-0000-000000000000"

// Submission is the caller-supplied payload of a quote request.
type Submission struct {
	Company     string        `json:"company,omitempty"`
	ContactName string        `json:"contactName" validate:"notblank"`
	Email       string        `json:"email" validate:"notblank,contactemail"`
	Phone       string        `json:"phone,omitempty"`
	Origin      string        `json:"origin" validate:"notblank"`
	Destination string        `json:"destination" validate:"notblank"`
	ShipDate    string        `json:"shipDate" validate:"notblank,shipdate"`
	WeightKg    *float64      `json:"weightKg" validate:"required,gt=0"`
	Volume      *float64      `json:"volume,omitempty" validate:"omitempty,gte=0"`
	Pieces      *int          `json:"pieces,omitempty" validate:"omitempty,gte=0"`
	Pallets     *int          `json:"pallets,omitempty" validate:"omitempty,gte=0"`
	Services    []ServiceType `json:"services" validate:"required,min=1,dive,servicetype"`
	Note        string        `json:"note,omitempty" validate:"max=500"`
	Consent     bool          `json:"consent" validate:"eq=true"`
}

// RequestMeta carries transport-level facts about a submission.
type RequestMeta struct {
	IP         string
	UserAgent  string
	TenantID   string
	CustomerID string
	ActorID    string
}

// QuoteRequest is a persisted quote request.
type QuoteRequest struct {
	ID          string        `json:"id"`
	Code        string        `json:"code"`
	TenantID    string        `json:"tenantId"`
	CustomerID  string        `json:"customerId,omitempty"`
	Company     string        `json:"company,omitempty"`
	ContactName string        `json:"contactName"`
	Email       string        `json:"email"`
	Phone       string        `json:"phone,omitempty"`
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	ShipDate    string        `json:"shipDate"`
	WeightKg    float64       `json:"weightKg"`
	Volume      *float64      `json:"volume,omitempty"`
	Pieces      *int          `json:"pieces,omitempty"`
	Pallets     *int          `json:"pallets,omitempty"`
	Services    []ServiceType `json:"services"`
	Note        string        `json:"note,omitempty"`
	Status      Status        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Summary is the part of a quote request returned to the submitter.
type Summary struct {
	ID     string `json:"id"`
	Code   string `json:"code"`
	Status Status `json:"status"`
}

// Summary returns the submitter-facing view of q.
func (q *QuoteRequest) Summary() Summary {
	return Summary{ID: q.ID, Code: q.Code, Status: q.Status}
}

// ErrDuplicateCode is returned by stores when a code is already taken.
var ErrDuplicateCode = errors.New("quote request code already exists")

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")
