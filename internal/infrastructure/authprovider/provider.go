// Package authprovider is the portal's auth provider: password sign-in,
// provider sessions, token refresh and auth-state-change events.
package authprovider

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
	"github.com/pesdo/placement-portal/pkg/helpers"
)

var (
	ErrInvalidCredentials   = errors.New("Invalid login credentials")
	ErrEmailNotConfirmed    = errors.New("Email not confirmed")
	ErrUserAlreadyExists    = errors.New("User already registered")
	ErrWeakPassword         = errors.New("Password should be at least 8 characters")
	ErrInvalidRefreshToken  = errors.New("Invalid Refresh Token")
	ErrProviderUnconfigured = errors.New("auth provider not configured")
)

// EventType names an auth-state change.
type EventType string

const (
	EventInitialSession EventType = "INITIAL_SESSION"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Session is a signed-in provider session as seen by a client.
type Session struct {
	ID                 string
	User               entity.Identity
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

// Event is delivered to OnAuthStateChange listeners. Session is nil for SIGNED_OUT.
type Event struct {
	Type    EventType
	Session *Session
}

const minPasswordLen = 8

type Service struct {
	Identities            repository.IdentityRepository
	Sessions              SessionStore
	JWT                   *helpers.JWTManager
	Logger                *logrus.Logger
	RequireConfirmedEmail bool
	// BcryptCost overrides bcrypt.DefaultCost when non-zero.
	BcryptCost int
}

func NewService(identities repository.IdentityRepository, sessions SessionStore, jwt *helpers.JWTManager, logger *logrus.Logger, requireConfirmed bool) *Service {
	return &Service{
		Identities:            identities,
		Sessions:              sessions,
		JWT:                   jwt,
		Logger:                logger,
		RequireConfirmedEmail: requireConfirmed,
	}
}

func (s *Service) hash(password string) (string, error) {
	if s.BcryptCost > 0 {
		return helpers.HashPasswordCost(password, s.BcryptCost)
	}
	return helpers.HashPassword(password)
}

// upgradeHash re-hashes a password stored under a weaker bcrypt cost.
// Failures are logged; the sign-in itself is unaffected.
func (s *Service) upgradeHash(ctx context.Context, i *entity.Identity, password string) {
	cost := s.BcryptCost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if !helpers.NeedsRehash(i.PasswordHash, cost) {
		return
	}
	hash, err := s.hash(password)
	if err == nil {
		err = s.Identities.UpdatePassword(ctx, i.ID, hash)
	}
	if err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", i.ID).Warn("password rehash failed")
	}
}

// SignUp creates an unconfirmed identity carrying the signup metadata.
func (s *Service) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*entity.Identity, error) {
	if len(password) < minPasswordLen {
		return nil, ErrWeakPassword
	}
	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	i := &entity.Identity{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Metadata:     metadata,
	}
	if err := s.Identities.Create(ctx, i); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, ErrUserAlreadyExists
		}
		return nil, err
	}
	return i, nil
}

func (s *Service) ConfirmEmail(ctx context.Context, identityID string) error {
	return s.Identities.ConfirmEmail(ctx, identityID)
}

func (s *Service) ResetPassword(ctx context.Context, identityID, newPassword string) error {
	if len(newPassword) < minPasswordLen {
		return ErrWeakPassword
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	return s.Identities.UpdatePassword(ctx, identityID, hash)
}

// Authenticate checks credentials without opening a session.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.Identity, error) {
	i, err := s.Identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !helpers.CompareHashAndPassword(i.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	s.upgradeHash(ctx, i, password)
	if s.RequireConfirmedEmail && !i.IsConfirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return i, nil
}

// Validate resolves an access token to its live provider session.
func (s *Service) Validate(ctx context.Context, accessToken string) (*StoredSession, error) {
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, err
	}
	ss, err := s.Sessions.Load(ctx, claims.SessionID)
	if err != nil {
		return nil, err
	}
	if ss.UserID != claims.UserID {
		return nil, ErrSessionNotFound
	}
	return ss, nil
}

// issue opens a provider session for identity on device.
func (s *Service) issue(ctx context.Context, i *entity.Identity, deviceID, sid string) (*Session, error) {
	pair, err := s.JWT.IssuePair(i.ID, sid)
	if err != nil {
		return nil, err
	}
	stored := StoredSession{SessionID: sid, UserID: i.ID, Email: i.Email, DeviceID: deviceID, CreatedAt: time.Now()}
	if err := s.Sessions.Save(ctx, stored, s.JWT.RefreshTTL); err != nil {
		return nil, err
	}
	return &Session{
		ID:                 sid,
		User:               i.Public(),
		AccessToken:        pair.Access,
		AccessTokenExpiry:  pair.AccessExpiry,
		RefreshToken:       pair.Refresh,
		RefreshTokenExpiry: pair.RefreshExpiry,
	}, nil
}

// NewClient returns the provider client bound to one browser device.
func (s *Service) NewClient(deviceID string) *Client {
	return newClient(s, deviceID)
}
