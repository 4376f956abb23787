package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"

	"github.com/provider-portal/backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Option("missingkey=zero").ParseFS(templateFS, "templates/*.html"))

var subjects = map[string]string{
	models.EmailTypeTemporaryPassword:   "Your provider portal account",
	models.EmailTypeRegistration:        "Welcome to the provider portal",
	models.EmailTypeSubmissionSubmitted: "Submission received",
}

// Subject returns the subject line for emailType.
func Subject(emailType string) (string, error) {
	s, ok := subjects[emailType]
	if !ok {
		return "", fmt.Errorf("unknown email type %q", emailType)
	}
	return s, nil
}

// Render returns the subject and HTML body for emailType filled with data.
func Render(emailType string, data map[string]string) (string, string, error) {
	subject, err := Subject(emailType)
	if err != nil {
		return "", "", err
	}
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, emailType+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", emailType, err)
	}
	return subject, buf.String(), nil
}
