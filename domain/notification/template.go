package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"
)

// TemplateData contains all the fields available for email template rendering
type TemplateData struct {
	Greeting   string // Dynamic greeting based on recipient count
	RunID      string
	Succeeded  int
	Failed     int
	Total      int
	Elapsed    string // e.g., "1m32s"
	Files      []FileResult
	SenderName string
}

// NewTemplateData prepares a report for rendering
func NewTemplateData(to []Recipient, report RunReport, senderName string) TemplateData {
	return TemplateData{
		Greeting:   FormatGreeting(to),
		RunID:      report.RunID,
		Succeeded:  report.Succeeded,
		Failed:     report.Failed,
		Total:      report.Total(),
		Elapsed:    report.Elapsed.Round(time.Second).String(),
		Files:      report.Files,
		SenderName: senderName,
	}
}

// EmailTemplate contains the templates for rendering emails
type EmailTemplate struct {
	SubjectFormat string
	PlainText     string
	HTML          string
}

// DefaultTemplate is the standard run summary email
var DefaultTemplate = EmailTemplate{
	SubjectFormat: "Audio conversion finished: {{.Succeeded}} of {{.Total}} files converted",
	PlainText: `{{.Greeting}}

Your conversion run finished in {{.Elapsed}}: {{.Succeeded}} succeeded, {{.Failed}} failed.
{{range .Files}}
- {{.Name}}: {{if .Succeeded}}converted{{if .Link}} {{.Link}}{{end}}{{else}}failed ({{.Message}}){{end}}{{end}}

~{{.SenderName}}`,
	HTML: `<div dir="ltr">{{.Greeting}}<br><br>
Your conversion run finished in {{.Elapsed}}: {{.Succeeded}} succeeded, {{.Failed}} failed.<br>
<ul>{{range .Files}}
<li>{{if .Succeeded}}{{if .Link}}<a href="{{.Link}}">{{.Name}}</a>{{else}}{{.Name}}{{end}}: converted{{else}}{{.Name}}: failed ({{.Message}}){{end}}</li>{{end}}
</ul>
~{{.SenderName}}</div>`,
}

// FormatGreeting creates an appropriate greeting based on number of recipients
// 1 recipient: "Dear John,"
// 2 recipients: "Dear John & Jane,"
// 3+ recipients: "Hey Everyone!"
func FormatGreeting(recipients []Recipient) string {
	switch len(recipients) {
	case 0:
		return "Hello,"
	case 1:
		name := getFirstName(recipients[0].Name)
		return fmt.Sprintf("Dear %s,", name)
	case 2:
		name1 := getFirstName(recipients[0].Name)
		name2 := getFirstName(recipients[1].Name)
		return fmt.Sprintf("Dear %s & %s,", name1, name2)
	default:
		return "Hey Everyone!"
	}
}

// getFirstName extracts the first name from a full name
func getFirstName(fullName string) string {
	if fullName == "" {
		return "Friend"
	}
	for i, c := range fullName {
		if c == ' ' {
			return fullName[:i]
		}
	}
	return fullName
}

// RenderSubject renders the email subject using the template
func (t *EmailTemplate) RenderSubject(data TemplateData) (string, error) {
	return renderTemplate("subject", t.SubjectFormat, data)
}

// RenderPlainText renders the plain text email body
func (t *EmailTemplate) RenderPlainText(data TemplateData) (string, error) {
	return renderTemplate("plaintext", t.PlainText, data)
}

// RenderHTML renders the HTML email body. File names and messages are escaped.
func (t *EmailTemplate) RenderHTML(data TemplateData) (string, error) {
	tmpl, err := htmltemplate.New("html").Parse(t.HTML)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}

func renderTemplate(name, tmplStr string, data TemplateData) (string, error) {
	tmpl, err := template.New(name).Parse(tmplStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
