package session

import (
	"errors"
	"fmt"

	"github.com/pesdo/placement-portal/internal/domain/entity"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrEmailNotConfirmed    = errors.New("Please confirm your email address before logging in. Check your inbox for the confirmation link.")
	ErrAccountTypeMismatch  = errors.New("account type mismatch")
	ErrProfileFetchFailed   = errors.New("profile fetch failed")
	ErrProfileLookup        = errors.New("profile lookup failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrUnsupportedProfile   = errors.New("profile type does not support this update")
)

// MismatchError reports that the identity is registered under another role.
type MismatchError struct {
	Expected entity.Role
	Found    entity.Role
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("This account is registered as %s %s. Please use the %s login instead.",
		e.Found.Article(), e.Found, e.Found)
}

func (e *MismatchError) Is(target error) bool { return target == ErrAccountTypeMismatch }

// authError keeps the provider's message while matching ErrAuthenticationFailed.
type authError struct{ err error }

func (e *authError) Error() string        { return e.err.Error() }
func (e *authError) Unwrap() error        { return e.err }
func (e *authError) Is(target error) bool { return target == ErrAuthenticationFailed }
