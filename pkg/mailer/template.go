package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// User-supplied fields pass through html/template so markup in the contact
// body cannot inject content into the rendered mail.
const bodyTemplate = `<html>
<body>
<h2>New contact message</h2>
<table>
<tr><td>Name</td><td>{{.SenderName}}</td></tr>
<tr><td>Address</td><td>{{.SenderAddress}}</td></tr>
{{if .Phone}}<tr><td>Phone</td><td>{{.Phone}}</td></tr>{{end}}
{{range $key, $value := .Context}}<tr><td>{{$key}}</td><td>{{$value}}</td></tr>
{{end}}</table>
<p>{{.Body}}</p>
</body>
</html>
`

func parseBodyTemplate() (*template.Template, error) {
	return template.New("contact").Parse(bodyTemplate)
}

func (s *SMTP) render(email Email) (subject string, body string, err error) {
	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, email); err != nil {
		return "", "", NewDeliveryError(ErrorCodeRenderError, "", err)
	}

	subject = fmt.Sprintf("New contact message from %s", sanitizeHeader(email.SenderName))
	if email.SenderName == "" {
		subject = fmt.Sprintf("New contact message from %s", sanitizeHeader(email.SenderAddress))
	}

	return subject, buf.String(), nil
}

// sanitizeHeader strips CR/LF so user text cannot inject mail headers.
func sanitizeHeader(v string) string {
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, "\n", " ")
}
