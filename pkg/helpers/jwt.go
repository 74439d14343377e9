package helpers

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "placement-portal"
	accessAudience  = "access"
	refreshAudience = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

// JWTManager signs the token pair of a provider session. Access and refresh
// tokens use separate secrets and audiences.
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
	}
}

// Claims binds a token to an identity and to the provider session that issued it.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// TokenPair is what a sign-in or refresh hands back to the browser.
type TokenPair struct {
	Access        string
	AccessExpiry  time.Time
	Refresh       string
	RefreshExpiry time.Time
}

func (m *JWTManager) sign(userID, sessionID, aud string, ttl time.Duration, secret []byte) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := &Claims{
		UserID:    userID,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   userID,
			Audience:  jwt.ClaimStrings{aud},
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	return s, exp, err
}

// IssuePair signs a fresh access/refresh pair for the session.
func (m *JWTManager) IssuePair(userID, sessionID string) (TokenPair, error) {
	var (
		p   TokenPair
		err error
	)
	if p.Access, p.AccessExpiry, err = m.sign(userID, sessionID, accessAudience, m.AccessTTL, m.AccessSecret); err != nil {
		return TokenPair{}, err
	}
	if p.Refresh, p.RefreshExpiry, err = m.sign(userID, sessionID, refreshAudience, m.RefreshTTL, m.RefreshSecret); err != nil {
		return TokenPair{}, err
	}
	return p, nil
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, accessAudience, m.AccessSecret)
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return parseToken(tokenStr, refreshAudience, m.RefreshSecret)
}

func parseToken(tokenStr, aud string, secret []byte) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(aud),
	)
	if err != nil {
		return nil, err
	}
	if !tkn.Valid || claims.SessionID == "" || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
