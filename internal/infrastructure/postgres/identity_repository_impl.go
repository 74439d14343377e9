package postgres

import (
	"context"
	"strings"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

type IdentityRepository struct {
	db Querier
}

func NewIdentityRepository(db Querier) *IdentityRepository {
	return &IdentityRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const identityColumns = `id, email, password_hash, email_confirmed_at, confirmed_at, metadata, created_at, updated_at`

func (r *IdentityRepository) scan(row interface{ Scan(...any) error }) (*entity.Identity, error) {
	i := &entity.Identity{}
	err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.EmailConfirmedAt, &i.ConfirmedAt,
		&i.Metadata, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, mapErr(err, repository.ErrNotFound)
	}
	return i, nil
}

func (r *IdentityRepository) Create(ctx context.Context, i *entity.Identity) error {
	if i.Metadata == nil {
		i.Metadata = map[string]any{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO identities (email, password_hash, email_confirmed_at, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`, normalizeEmail(i.Email), i.PasswordHash, i.EmailConfirmedAt, i.Metadata)
	return mapErr(row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt), repository.ErrNotFound)
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return r.scan(r.db.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities WHERE email = $1`, normalizeEmail(email)))
}

// ConfirmEmail stamps email_confirmed_at once; re-confirming keeps the first timestamp.
func (r *IdentityRepository) ConfirmEmail(ctx context.Context, id string) error {
	res, err := r.db.Exec(ctx, `
		UPDATE identities
		SET email_confirmed_at = COALESCE(email_confirmed_at, now()), updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	res, err := r.db.Exec(ctx, `UPDATE identities SET password_hash = $1, updated_at = now() WHERE id = $2`, hash, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
