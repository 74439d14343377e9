package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmpl "html/template"
	"reflect"
	"strings"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// Universal is the single layout every typed email renders through.
const Universal = "universal"

// EmailData defines standard fields for email templates.
type EmailData struct {
	Name           string `json:"Name"`
	Email          string `json:"Email"`
	RecipientEmail string `json:"RecipientEmail"`
	Type           string `json:"Type"`
	UserType       string `json:"UserType,omitempty"`

	// Company info
	CompanyName    string `json:"CompanyName"`
	CompanyAddress string `json:"CompanyAddress"`
	AppName        string `json:"AppName"`

	// URLs
	LogoURL        string `json:"LogoURL"`
	SupportURL     string `json:"SupportURL"`
	PrivacyURL     string `json:"PrivacyURL"`
	UnsubscribeURL string `json:"UnsubscribeURL"`
	PortalURL      string `json:"PortalURL"`

	// Action URLs
	ResetURL  string `json:"ResetURL"`
	VerifyURL string `json:"VerifyURL"`

	// Job placement
	JobTitle      string `json:"JobTitle,omitempty"`
	Employer      string `json:"Employer,omitempty"`
	ApplicantName string `json:"ApplicantName,omitempty"`
	Status        string `json:"Status,omitempty"`

	ExpiresAt     time.Time         `json:"ExpiresAt"`
	ExpiresAtText string            `json:"ExpiresAtText"`
	IP            string            `json:"IP"`
	Time          string            `json:"Time"`
	TimeAt        time.Time         `json:"TimeAt"`
	UserAgent     string            `json:"UserAgent"`
	Location      string            `json:"Location"`
	Changes       map[string]string `json:"Changes"`
}

// ToMap converts EmailData to a map[string]any for EmailJob.Data
func ToMap(d EmailData) map[string]any {
	b, _ := json.Marshal(d)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// FromMap is the inverse of ToMap. Unknown keys are ignored.
func FromMap(m map[string]any) (EmailData, error) {
	var d EmailData
	if len(m) == 0 {
		return d, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("email data: %w", err)
	}
	return d, nil
}

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		rv := reflect.ValueOf(value)
		if !rv.IsValid() {
			return fallback
		}
		if rv.IsZero() {
			return fallback
		}
		return value
	}
}

var funcs = htmpl.FuncMap{
	"year":    func() int { return time.Now().Year() },
	"upper":   strings.ToUpper,
	"title":   titleCase,
	"default": defaultFn,
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

const (
	Welcome           = "welcome"
	VerifyEmail       = "verify_email"
	ForgotPassword    = "forgot_password"
	LoginNotification = "login_notification"
	ProfileUpdated    = "profile_updated"
	ApplicationStatus = "application_status"
	NewApplication    = "new_application"
	JobApproval       = "job_approval"
)

// Known reports whether typ is one of the typed emails the universal layout renders.
func Known(typ string) bool {
	switch strings.ToLower(typ) {
	case Welcome, VerifyEmail, ForgotPassword, LoginNotification, ProfileUpdated,
		ApplicationStatus, NewApplication, JobApproval:
		return true
	}
	return false
}

// Subject picks the subject line for a typed email.
func Subject(d EmailData) string {
	switch strings.ToLower(d.Type) {
	case Welcome:
		return fmt.Sprintf("Welcome to %s, %s!", defaultFn("PESDO", d.CompanyName), defaultFn("there", d.Name))
	case VerifyEmail:
		return "Verify your email address"
	case ForgotPassword:
		return "Reset your password"
	case LoginNotification:
		return "New login to your account"
	case ProfileUpdated:
		return "Your profile was updated successfully"
	case ApplicationStatus:
		switch strings.ToLower(d.Status) {
		case "accepted":
			return fmt.Sprintf("Congratulations! Your application for %s has been accepted", d.JobTitle)
		case "referred":
			return fmt.Sprintf("You've been referred for %s", d.JobTitle)
		}
		return fmt.Sprintf("Update on your application for %s", d.JobTitle)
	case NewApplication:
		return fmt.Sprintf("New Application Received for %s", d.JobTitle)
	case JobApproval:
		if strings.EqualFold(d.Status, "approved") {
			return fmt.Sprintf("Your Job Vacancy %q has been Approved", d.JobTitle)
		}
		return fmt.Sprintf("Update on Your Job Vacancy %q", d.JobTitle)
	}
	return "Notification"
}

func renderFile(filename string, data any) (string, error) {
	tpl, err := htmpl.New(filename).Funcs(funcs).ParseFS(FS, filename)
	if err != nil {
		return "", fmt.Errorf("parse html %q: %w", filename, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", filename, err)
	}
	return buf.String(), nil
}

// RenderHTML renders just an HTML template: <name>.html.tmpl
func RenderHTML(name string, data any) (string, error) {
	return renderFile(name+".html.tmpl", data)
}

// Render returns the subject and HTML body of a typed email.
func Render(d EmailData) (subject, html string, err error) {
	if !Known(d.Type) {
		return "", "", fmt.Errorf("unknown email type %q", d.Type)
	}
	d.Type = strings.ToLower(d.Type)
	html, err = RenderHTML(Universal, d)
	if err != nil {
		return "", "", err
	}
	return Subject(d), html, nil
}
