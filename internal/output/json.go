package output

import (
	"encoding/json"

	"github.com/apony/quoteintake/internal/core"
)

// JSONFormatter renders records as JSON.
type JSONFormatter struct {
	Indent bool
}

// FormatAudit renders entries as a JSON array. An empty trail renders as [].
func (f *JSONFormatter) FormatAudit(entries []core.AuditEntry) (string, error) {
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	return f.marshal(entries)
}

// FormatAttempt renders the attempt as a JSON object.
func (f *JSONFormatter) FormatAttempt(attempt core.NotificationAttempt) (string, error) {
	return f.marshal(attempt)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}
