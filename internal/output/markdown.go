package output

import (
	"github.com/apony/quoteintake/internal/core"
)

// MarkdownFormatter renders records as markdown tables.
type MarkdownFormatter struct{}

// FormatAudit renders an audit trail as Markdown.
func (f *MarkdownFormatter) FormatAudit(entries []core.AuditEntry) (string, error) {
	return auditTable(entries).RenderMarkdown(), nil
}

// FormatAttempt renders one dispatch result as Markdown.
func (f *MarkdownFormatter) FormatAttempt(attempt core.NotificationAttempt) (string, error) {
	return attemptTable(attempt).RenderMarkdown(), nil
}
