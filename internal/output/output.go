// Package output renders audit trails and dispatch results for the CLI.
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/apony/quoteintake/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders operator-facing records.
type Formatter interface {
	FormatAudit(entries []core.AuditEntry) (string, error)
	FormatAttempt(attempt core.NotificationAttempt) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

const timeLayout = "2006-01-02 15:04:05Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func actorLabel(e core.AuditEntry) string {
	if e.ActorID != "" {
		return fmt.Sprintf("%s (%s)", e.ActorType, e.ActorID)
	}
	return string(e.ActorType)
}

// summarizeExtra flattens extra data into "key=value" pairs in key order.
// Per-transport attempts are summarized by method.
func summarizeExtra(extra map[string]any) string {
	if len(extra) == 0 {
		return ""
	}
	keys := make([]string, 0, len(extra))
	for key := range extra {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+valueString(extra[key]))
	}
	return strings.Join(parts, " ")
}

func valueString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ",")
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, valueString(item))
		}
		return strings.Join(items, ",")
	case []core.TransportAttempt:
		items := make([]string, 0, len(v))
		for _, a := range v {
			items = append(items, attemptLabel(a))
		}
		return strings.Join(items, ",")
	case map[string]any:
		if method, ok := v["method"].(string); ok {
			if errText, ok := v["error"].(string); ok && errText != "" {
				return method + ":failed"
			}
			return method + ":ok"
		}
		return fmt.Sprint(v)
	default:
		return fmt.Sprint(v)
	}
}

func attemptLabel(a core.TransportAttempt) string {
	if a.Error != "" {
		return string(a.Method) + ":failed"
	}
	return string(a.Method) + ":ok"
}
