// Package notify delivers new quote request notifications to staff through
// an ordered chain of transports.
package notify

import (
	"fmt"
	"strings"

	"github.com/apony/quoteintake/internal/core"
)

// DefaultFrontendURL is the admin UI base used when none is configured.
const DefaultFrontendURL = "http://localhost:3000"

// Notification is what a transport delivers for one quote request.
type Notification struct {
	Quote      *core.QuoteRequest
	Recipients []string
	Link       string
}

// Receipt is returned by a transport that accepted a notification.
type Receipt struct {
	MessageID string
}

// AdminLink builds the deep link to a quote request in the admin UI.
func AdminLink(frontendURL, id string) string {
	base := strings.TrimRight(strings.TrimSpace(frontendURL), "/")
	if base == "" {
		base = DefaultFrontendURL
	}
	return fmt.Sprintf("%s/admin/quote-requests/%s", base, id)
}

// Subject is the mail subject for n.
func (n Notification) Subject() string {
	q := n.Quote
	return fmt.Sprintf("New quote request: %s → %s (services: %s)",
		q.Origin, q.Destination, joinServices(q.Services))
}

func joinServices(services []core.ServiceType) string {
	parts := make([]string, 0, len(services))
	for _, svc := range services {
		parts = append(parts, string(svc))
	}
	return strings.Join(parts, ", ")
}
