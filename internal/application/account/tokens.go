package account

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// TokenPurpose selects a key namespace and lifetime for one-time tokens.
type TokenPurpose struct {
	Prefix string
	TTL    time.Duration
}

var (
	VerifyEmailToken   = TokenPurpose{Prefix: "email:verify:token:", TTL: 24 * time.Hour}
	ResetPasswordToken = TokenPurpose{Prefix: "pwd:reset:token:", TTL: 30 * time.Minute}
)

// TokenStore keeps one-time tokens in Redis, each mapping to an identity id.
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

func genToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Issue stores a fresh token for identityID and returns it.
func (s *TokenStore) Issue(ctx context.Context, p TokenPurpose, identityID string) (string, error) {
	tok, err := genToken(32)
	if err != nil {
		return "", err
	}
	if err := s.rdb.Set(ctx, p.Prefix+tok, identityID, p.TTL).Err(); err != nil {
		return "", err
	}
	return tok, nil
}

// Consume returns the identity id bound to tok and deletes it atomically.
func (s *TokenStore) Consume(ctx context.Context, p TokenPurpose, tok string) (string, error) {
	if tok == "" {
		return "", ErrInvalidToken
	}
	id, err := s.rdb.GetDel(ctx, p.Prefix+tok).Result()
	if errors.Is(err, redis.Nil) || (err == nil && id == "") {
		return "", ErrInvalidToken
	}
	if err != nil {
		return "", err
	}
	return id, nil
}
