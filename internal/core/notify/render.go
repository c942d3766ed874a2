package notify

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strconv"
	"strings"
)

var mailTemplate = template.Must(template.New("quote").Funcs(template.FuncMap{
	"kg":       formatFloat,
	"services": joinServices,
	"deref":    func(v *float64) float64 { return *v },
}).Parse(`<h2>New quote request {{.Quote.Code}}</h2>
<table>
<tr><td><strong>Contact</strong></td><td>{{.Quote.ContactName}}{{if .Quote.Company}} ({{.Quote.Company}}){{end}}</td></tr>
<tr><td><strong>Email</strong></td><td>{{.Quote.Email}}{{if .Quote.Phone}} / {{.Quote.Phone}}{{end}}</td></tr>
<tr><td><strong>Route</strong></td><td>{{.Quote.Origin}} → {{.Quote.Destination}}</td></tr>
<tr><td><strong>Ship date</strong></td><td>{{.Quote.ShipDate}}</td></tr>
<tr><td><strong>Weight</strong></td><td>{{kg .Quote.WeightKg}} kg</td></tr>
{{- if .Quote.Volume}}
<tr><td><strong>Volume</strong></td><td>{{kg (deref .Quote.Volume)}} m³</td></tr>
{{- end}}
{{- if .Quote.Pieces}}
<tr><td><strong>Pieces</strong></td><td>{{.Quote.Pieces}}</td></tr>
{{- end}}
{{- if .Quote.Pallets}}
<tr><td><strong>Pallets</strong></td><td>{{.Quote.Pallets}}</td></tr>
{{- end}}
<tr><td><strong>Services</strong></td><td>{{services .Quote.Services}}</td></tr>
{{- if .Quote.Note}}
<tr><td><strong>Note</strong></td><td>{{.Quote.Note}}</td></tr>
{{- end}}
</table>
<p><a href="{{.Link}}">Open in admin</a></p>
<p>{{.Link}}</p>
`))

// RenderHTML renders the HTML mail body for n.
func RenderHTML(n Notification) (string, error) {
	if n.Quote == nil {
		return "", fmt.Errorf("notification has no quote request")
	}
	var buf bytes.Buffer
	if err := mailTemplate.Execute(&buf, n); err != nil {
		return "", fmt.Errorf("render mail: %w", err)
	}
	return buf.String(), nil
}

var (
	blockBreaks = regexp.MustCompile(`(?i)<br\s*/?>|</(p|tr|h[1-6]|li|div)>`)
	cellBreaks  = regexp.MustCompile(`(?i)</td>\s*<td[^>]*>`)
	anyTag      = regexp.MustCompile(`<[^>]+>`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText derives a plain-text body from rendered HTML.
func HTMLToText(body string) string {
	text := cellBreaks.ReplaceAllString(body, ": ")
	text = blockBreaks.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text) + "\n"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
