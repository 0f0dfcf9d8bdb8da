package notify

import (
	"bytes"
	_ "embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/sznuper/agentprobe/internal/probe"
)

// DefaultServiceTemplate is the plain-text message for extra services.
const DefaultServiceTemplate = `{{ emoji .Class }} {{ .ServerName }} is unhealthy ({{ .Class }}): {{ .Reason }}
address: {{ .Address }}
probed from {{ .Hostname }} at {{ .Time.Format "2006-01-02 15:04:05 MST" }}`

//go:embed alert.html.tmpl
var defaultMailTemplate string

// DefaultMailTemplate returns the built-in HTML alert body.
func DefaultMailTemplate() string {
	return defaultMailTemplate
}

func emoji(class string) string {
	switch probe.ErrorKind(class) {
	case probe.ErrConnectionFailure, probe.ErrTransport:
		return "\U0001f534" // 🔴
	case probe.ErrResponseTimeout, probe.ErrHTTPStatus:
		return "\U0001f7e1" // 🟡
	case "":
		return "\U0001f7e2" // 🟢
	default:
		return "\u2753" // ❓
	}
}

// Render executes a text/template string against an alert, with the Sprig
// functions and emoji available.
func Render(tmplStr string, a AlertContext) (string, error) {
	funcMap := sprig.TxtFuncMap()
	funcMap["emoji"] = emoji

	t, err := template.New("notify").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, a); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}

// mailData is what the HTML template sees: the alert plus its recipients.
type mailData struct {
	AlertContext
	To []string
	CC []string
}

// RenderHTML executes an html/template string for the alert email. Alert
// fields are escaped.
func RenderHTML(tmplStr string, data mailData) (string, error) {
	funcMap := sprig.FuncMap()
	funcMap["emoji"] = emoji

	t, err := htmltemplate.New("mail").Funcs(funcMap).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}

	return buf.String(), nil
}
