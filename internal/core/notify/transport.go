package notify

import (
	"context"

	"github.com/apony/quoteintake/internal/core"
)

// Transport delivers a notification through one channel.
type Transport interface {
	// Method names the transport in audit records and metrics.
	Method() core.NotifyMethod
	// Configured reports whether the transport should be attempted at all.
	Configured() bool
	// Send delivers n. A nil error means the provider accepted it.
	Send(ctx context.Context, n Notification) (Receipt, error)
}
