// Package account covers the account lifecycle around sign-in: signup with
// role profile creation, email confirmation and password reset.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pesdo/placement-portal/config"
	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/pkg/mailer"
	mailtpl "github.com/pesdo/placement-portal/pkg/mailer/templates"
)

var (
	// ErrInvalidUserType is returned for unknown roles and for admin, which
	// cannot be self-registered.
	ErrInvalidUserType = errors.New("invalid user type")
	ErrAlreadyVerified = errors.New("email already verified")
)

// Provider is the identity side of the auth provider.
type Provider interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*entity.Identity, error)
	ConfirmEmail(ctx context.Context, identityID string) error
	ResetPassword(ctx context.Context, identityID, newPassword string) error
}

// Mailer queues email without reporting delivery problems to the caller.
type Mailer interface {
	Enqueue(ctx context.Context, job mailer.EmailJob)
}

type ActivitySink interface {
	LogActivity(ctx context.Context, e entity.ActivityLog)
}

type Service struct {
	Provider   Provider
	Identities repository.IdentityRepository
	Profiles   repository.ProfileRepository
	Tokens     *TokenStore
	Mail       Mailer
	Audit      ActivitySink
	Cfg        *config.Config
	Logger     *logrus.Logger
}

type SignupInput struct {
	Email     string
	Password  string
	UserType  entity.Role
	Data      map[string]any
	IP        string
	UserAgent string
}

type SignupResult struct {
	Identity *entity.Identity
	// Profile is nil when the role row could not be created; the account
	// still exists and the profile falls back to the default on sign-in.
	Profile entity.Profile
}

// SanitizeMetadata trims string values, turns blank strings into nil and
// drops the username key.
func SanitizeMetadata(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == "username" {
			continue
		}
		if s, ok := v.(string); ok {
			if s = strings.TrimSpace(s); s == "" {
				out[k] = nil
			} else {
				out[k] = s
			}
			continue
		}
		out[k] = v
	}
	return out
}

func str(m map[string]any, k string) string {
	s, _ := m[k].(string)
	return s
}

func (s *Service) log() *logrus.Logger {
	if s.Logger == nil {
		return logrus.StandardLogger()
	}
	return s.Logger
}

func (s *Service) activity(ctx context.Context, e entity.ActivityLog) {
	if s.Audit != nil {
		s.Audit.LogActivity(ctx, e)
	}
}

func (s *Service) enqueue(ctx context.Context, job mailer.EmailJob) {
	if s.Mail != nil {
		s.Mail.Enqueue(ctx, job)
	}
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*SignupResult, error) {
	role := in.UserType
	if role == entity.RoleNone {
		role = entity.RoleJobseeker
	}
	if !role.Valid() || role == entity.RoleAdmin {
		return nil, ErrInvalidUserType
	}
	data := SanitizeMetadata(in.Data)
	meta := make(map[string]any, len(data)+1)
	for k, v := range data {
		meta[k] = v
	}
	meta["userType"] = string(role)

	ident, err := s.Provider.SignUp(ctx, in.Email, in.Password, meta)
	if err != nil {
		return nil, err
	}

	res := &SignupResult{Identity: ident}
	profile, err := s.createProfile(ctx, role, ident, data)
	if err != nil {
		s.log().WithError(err).WithFields(logrus.Fields{"user_id": ident.ID, "user_type": role}).
			Error("profile creation failed after signup")
	} else {
		res.Profile = profile
	}

	name := displayName(role, data, ident.Email)
	if err := s.sendVerification(ctx, ident, name); err != nil {
		s.log().WithError(err).WithField("user_id", ident.ID).Warn("verification token not issued")
	}
	s.enqueue(ctx, mailer.EmailJob{To: ident.Email, Template: mailtpl.Welcome, Data: mailtpl.NewWelcomeData(s.Cfg, name, ident.Email, string(role))})

	s.activity(ctx, entity.ActivityLog{
		UserID:            ident.ID,
		UserType:          string(role),
		ActionType:        "signup",
		ActionDescription: "Account created",
		EntityType:        role.Table(),
		EntityID:          ident.ID,
		Metadata:          map[string]any{"profile_created": res.Profile != nil},
		IP:                in.IP,
		UserAgent:         in.UserAgent,
	})
	return res, nil
}

// createProfile inserts the role row through the privileged insert path.
// Admin rows are only created by the seed command.
func (s *Service) createProfile(ctx context.Context, role entity.Role, ident *entity.Identity, data map[string]any) (entity.Profile, error) {
	tag := string(role)
	switch role {
	case entity.RoleEmployer:
		p := &entity.EmployerProfile{ID: ident.ID, Email: ident.Email, BusinessName: str(data, "business_name"), Tag: tag}
		return p, s.Profiles.CreateEmployer(ctx, p)
	default:
		p := &entity.JobseekerProfile{
			ID:        ident.ID,
			Email:     ident.Email,
			FirstName: str(data, "first_name"),
			LastName:  str(data, "last_name"),
			Suffix:    str(data, "suffix"),
			Phone:     str(data, "phone"),
			Tag:       tag,
		}
		return p, s.Profiles.CreateJobseeker(ctx, p)
	}
}

func displayName(role entity.Role, data map[string]any, email string) string {
	if role == entity.RoleEmployer {
		if n := str(data, "business_name"); n != "" {
			return n
		}
	}
	if n := strings.TrimSpace(str(data, "first_name") + " " + str(data, "last_name")); n != "" {
		return n
	}
	return strings.SplitN(email, "@", 2)[0]
}

func link(base, tok string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(tok)
}

func (s *Service) sendVerification(ctx context.Context, ident *entity.Identity, name string) error {
	if s.Tokens == nil {
		return errors.New("token store not configured")
	}
	tok, err := s.Tokens.Issue(ctx, VerifyEmailToken, ident.ID)
	if err != nil {
		return err
	}
	data := mailtpl.NewVerifyEmailData(s.Cfg, name, ident.Email, link(s.Cfg.VerifyEmailURL, tok), mailtpl.WithExpiresIn(VerifyEmailToken.TTL))
	s.enqueue(ctx, mailer.EmailJob{To: ident.Email, Template: mailtpl.VerifyEmail, Data: data})
	return nil
}

// VerifyInit re-sends the confirmation link to a signed-in identity.
func (s *Service) VerifyInit(ctx context.Context, identityID string) error {
	ident, err := s.Identities.GetByID(ctx, identityID)
	if err != nil {
		return err
	}
	if ident.IsConfirmed() {
		return ErrAlreadyVerified
	}
	if err := s.sendVerification(ctx, ident, displayName(entity.RoleNone, ident.Metadata, ident.Email)); err != nil {
		return err
	}
	s.activity(ctx, entity.ActivityLog{UserID: ident.ID, ActionType: "verify_init", ActionDescription: "Confirmation email requested"})
	return nil
}

// VerifyConfirm spends a confirmation token and marks the email confirmed.
func (s *Service) VerifyConfirm(ctx context.Context, tok string) (string, error) {
	id, err := s.Tokens.Consume(ctx, VerifyEmailToken, tok)
	if err != nil {
		return "", err
	}
	if err := s.Provider.ConfirmEmail(ctx, id); err != nil {
		return "", fmt.Errorf("confirm email: %w", err)
	}
	s.activity(ctx, entity.ActivityLog{UserID: id, ActionType: "email_verified", ActionDescription: "Email address confirmed"})
	return id, nil
}

// ResetInit starts a password reset. It never reveals whether email belongs
// to an account; only infrastructure failures are returned.
func (s *Service) ResetInit(ctx context.Context, email, ip, userAgent string) error {
	ident, err := s.Identities.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, repository.ErrNotFound) {
		s.log().WithField("email", email).Debug("reset requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := s.Tokens.Issue(ctx, ResetPasswordToken, ident.ID)
	if err != nil {
		return err
	}
	data := mailtpl.NewForgotPasswordData(s.Cfg, displayName(entity.RoleNone, ident.Metadata, ident.Email), ident.Email,
		mailtpl.WithResetURL(link(s.Cfg.ResetPasswordURL, tok)),
		mailtpl.WithExpiresIn(ResetPasswordToken.TTL),
		mailtpl.WithIP(ip),
		mailtpl.WithUserAgent(userAgent),
		mailtpl.WithTime(time.Now()),
	)
	s.enqueue(ctx, mailer.EmailJob{To: ident.Email, Template: mailtpl.ForgotPassword, Data: data})
	s.activity(ctx, entity.ActivityLog{UserID: ident.ID, ActionType: "password_reset_requested", ActionDescription: "Password reset requested", IP: ip, UserAgent: userAgent})
	return nil
}

// ResetConfirm spends a reset token and sets the new password.
func (s *Service) ResetConfirm(ctx context.Context, tok, newPassword string) error {
	id, err := s.Tokens.Consume(ctx, ResetPasswordToken, tok)
	if err != nil {
		return err
	}
	if err := s.Provider.ResetPassword(ctx, id, newPassword); err != nil {
		return err
	}
	s.activity(ctx, entity.ActivityLog{UserID: id, ActionType: "password_reset", ActionDescription: "Password changed with reset link"})
	return nil
}
