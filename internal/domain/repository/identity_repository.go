package repository

import (
	"context"
	"errors"

	"github.com/pesdo/placement-portal/internal/domain/entity"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// IdentityRepository defines the storage operations on auth identities.
type IdentityRepository interface {
	Create(ctx context.Context, i *entity.Identity) error
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	GetByEmail(ctx context.Context, email string) (*entity.Identity, error)
	ConfirmEmail(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, hash string) error
}
