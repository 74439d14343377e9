package templates

import (
	"context"
	"strings"
	"time"

	"github.com/pesdo/placement-portal/config"
)

const timeLayout = "02 January 2006, 15:04"

// Option pattern
type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format(timeLayout)
	}
}
func WithVerifyURL(url string) Option { return func(d *EmailData) { d.VerifyURL = url } }
func WithResetURL(url string) Option  { return func(d *EmailData) { d.ResetURL = url } }
func WithChanges(ch map[string]string) Option {
	return func(d *EmailData) { d.Changes = ch }
}
func WithUserType(t string) Option { return func(d *EmailData) { d.UserType = t } }

func WithLocation(loc string) Option {
	return func(d *EmailData) {
		if s := strings.TrimSpace(loc); s != "" {
			d.Location = s
		}
	}
}

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		utc := time.Now().Add(dur).UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format(timeLayout)
	}
}

// NewBaseEmailData fills the branding fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,

		LogoURL:        cfg.LogoURL,
		SupportURL:     cfg.SupportURL,
		PrivacyURL:     cfg.PrivacyURL,
		UnsubscribeURL: cfg.UnsubscribeURL,
		PortalURL:      cfg.PortalURL,

		ResetURL:  cfg.ResetPasswordURL,
		VerifyURL: cfg.VerifyEmailURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(cfg *config.Config, name, email, userType string) map[string]any {
	return ToMap(NewBaseEmailData(cfg, Welcome, name, email, email, WithUserType(userType)))
}

func NewVerifyEmailData(cfg *config.Config, name, email, verifyURL string, opts ...Option) map[string]any {
	opts = append([]Option{WithVerifyURL(verifyURL)}, opts...)
	return ToMap(NewBaseEmailData(cfg, VerifyEmail, name, email, email, opts...))
}

func NewForgotPasswordData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, ForgotPassword, name, email, email, opts...))
}

func NewLoginNotificationData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, LoginNotification, name, email, email, opts...))
}

func NewProfileUpdatedData(cfg *config.Config, name, email string, changes map[string]string) map[string]any {
	return ToMap(NewBaseEmailData(cfg, ProfileUpdated, name, email, email, WithChanges(changes)))
}

func NewApplicationStatusData(cfg *config.Config, name, email, jobTitle, status, employer string) map[string]any {
	d := NewBaseEmailData(cfg, ApplicationStatus, name, email, email)
	d.JobTitle, d.Status, d.Employer = jobTitle, strings.ToLower(status), employer
	return ToMap(d)
}

func NewApplicationReceivedData(cfg *config.Config, employerName, employerEmail, applicant, jobTitle string) map[string]any {
	d := NewBaseEmailData(cfg, NewApplication, employerName, employerEmail, employerEmail)
	d.ApplicantName, d.JobTitle = applicant, jobTitle
	return ToMap(d)
}

func NewJobApprovalData(cfg *config.Config, employerName, employerEmail, jobTitle, status string) map[string]any {
	d := NewBaseEmailData(cfg, JobApproval, employerName, employerEmail, employerEmail)
	d.JobTitle, d.Status = jobTitle, strings.ToLower(status)
	return ToMap(d)
}

// Localize rewrites the display times in the recipient's timezone when the
// request IP resolves to one. Lookup failures leave d unchanged.
func Localize(ctx context.Context, r GeoResolver, d *EmailData) {
	if r == nil || strings.TrimSpace(d.IP) == "" {
		return
	}
	g, err := r.Lookup(ctx, d.IP)
	if err != nil {
		return
	}
	if d.Location == "" {
		d.Location = g.String()
	}
	if strings.TrimSpace(g.Timezone) == "" {
		return
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return
	}
	if !d.ExpiresAt.IsZero() {
		d.ExpiresAtText = d.ExpiresAt.In(loc).Format(timeLayout + " MST")
	}
	if !d.TimeAt.IsZero() {
		d.Time = d.TimeAt.In(loc).Format(timeLayout + " MST")
	}
}
