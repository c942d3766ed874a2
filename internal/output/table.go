package output

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/apony/quoteintake/internal/core"
)

// TableFormatter renders records as an ASCII table.
type TableFormatter struct{}

// FormatAudit renders an audit trail, oldest first.
func (f *TableFormatter) FormatAudit(entries []core.AuditEntry) (string, error) {
	t := auditTable(entries)
	t.SetStyle(table.StyleRounded)
	return t.Render(), nil
}

// FormatAttempt renders one dispatch result.
func (f *TableFormatter) FormatAttempt(attempt core.NotificationAttempt) (string, error) {
	t := attemptTable(attempt)
	t.SetStyle(table.StyleRounded)
	return t.Render(), nil
}

func auditTable(entries []core.AuditEntry) table.Writer {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Time", "Operation", "Actor", "IP", "Details"})
	for _, e := range entries {
		t.AppendRow(table.Row{
			e.ID,
			formatTime(e.CreatedAt),
			string(e.Operation),
			actorLabel(e),
			e.IP,
			summarizeExtra(e.ExtraData),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", fmt.Sprintf("%d entries", len(entries))})
	return t
}

func attemptTable(attempt core.NotificationAttempt) table.Writer {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("Dispatch %s: %s", attempt.QuoteRequestID, attempt.Outcome))
	t.AppendHeader(table.Row{"Method", "Result", "Message ID / Error"})
	for _, a := range attempt.Attempts {
		result, detail := "ok", a.ProviderMessageID
		if a.Error != "" {
			result, detail = "failed", a.Error
		}
		t.AppendRow(table.Row{string(a.Method), result, detail})
	}
	if len(attempt.Attempts) == 0 {
		t.AppendRow(table.Row{"-", string(attempt.Outcome), attempt.ErrorDetail})
	}
	t.AppendFooter(table.Row{"To", strings.Join(attempt.Recipients, ", "), ""})
	return t
}
