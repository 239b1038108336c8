package rendering

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultSummary is the plain text summary sent to recipients
const DefaultSummary = `TLA report {{ .window }} ({{ .records }} records, {{ .failures }} failures{{ if .excluded }}, {{ .excluded }} excluded{{ end }})
{{- if not .top }}
No failures in this window.
{{- else }}

Top {{ len .top }} categories:
{{- range $i, $c := .top }}
{{ add1 $i }}. {{ $c.Category }} - {{ $c.Count }} fails
{{- end }}

{{ printf "%-32s %-12s %10s %10s" "Category" "UUT" "1st Shift" "2nd Shift" }}
{{- range .summary }}
{{ printf "%-32s %-12s %10s %10s" (trunc 32 .Category) .DeviceType .First.String .Second.String }}
{{- end }}
{{- range .references }}{{ if .Description }}

{{ .Category }}: {{ .Description }}
{{- end }}{{ end }}
{{- end }}
{{- if .trend }}

Trend window {{ .trend }}
{{- end }}
{{- if .warnings }}

Warnings:
{{- range .warnings }}
- {{ . }}
{{- end }}
{{- end }}
`

// TemplateEngine provides template rendering with Sprig functions
type TemplateEngine struct {
	funcMap template.FuncMap
	summary string
}

// NewTemplateEngine creates a template engine. A non-empty path replaces the
// default summary template with the file's content.
func NewTemplateEngine(path string) (*TemplateEngine, error) {
	t := &TemplateEngine{
		funcMap: sprig.TxtFuncMap(),
		summary: DefaultSummary,
	}

	if path != "" {
		content, err := os.ReadFile(path) //nolint:gosec // operator supplied template
		if err != nil {
			return nil, fmt.Errorf("failed to read summary template: %w", err)
		}

		t.summary = string(content)
	}

	return t, nil
}

// Render renders a template with the given variables
func (t *TemplateEngine) Render(content string, variables map[string]interface{}) (string, error) {
	tmpl, err := template.New("summary").Funcs(t.funcMap).Parse(content)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

// Summary renders the configured summary template for a report
func (t *TemplateEngine) Summary(r *Report) (string, error) {
	if r == nil || r.Result == nil {
		return "", ErrNoReport
	}

	return t.Render(t.summary, BuildVariables(r))
}

// BuildVariables flattens a report into template variables
func BuildVariables(r *Report) map[string]interface{} {
	variables := map[string]interface{}{
		"run_id":     r.RunID,
		"window":     r.Window.String(),
		"path":       r.Path,
		"sources":    r.Sources,
		"warnings":   r.Warnings,
		"records":    r.Result.Records,
		"failures":   r.Result.Failures,
		"excluded":   r.Result.Excluded,
		"top":        r.Result.Top,
		"rates":      r.Result.Rates,
		"summary":    r.Result.Summary,
		"references": r.References,
		"trend":      "",
	}

	if r.TrendWindow != nil {
		variables["trend"] = r.TrendWindow.String()
	}

	return variables
}
