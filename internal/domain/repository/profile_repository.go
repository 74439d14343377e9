package repository

import (
	"context"
	"errors"

	"github.com/pesdo/placement-portal/internal/domain/entity"
)

// ErrProfileNotFound is returned when the identity has no row in the queried table.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository reads and writes the three disjoint profile tables.
// Lookups are exact-match by identity id and expect a single row.
type ProfileRepository interface {
	FindAdmin(ctx context.Context, id string) (*entity.AdminProfile, error)
	FindEmployer(ctx context.Context, id string) (*entity.EmployerProfile, error)
	FindJobseeker(ctx context.Context, id string) (*entity.JobseekerProfile, error)

	CreateAdmin(ctx context.Context, p *entity.AdminProfile) error
	CreateEmployer(ctx context.Context, p *entity.EmployerProfile) error
	CreateJobseeker(ctx context.Context, p *entity.JobseekerProfile) error

	UpdateJobseeker(ctx context.Context, id string, fields JobseekerUpdate) (*entity.JobseekerProfile, error)
}

// JobseekerUpdate carries optional column updates; nil fields are left untouched.
type JobseekerUpdate struct {
	FirstName         *string
	LastName          *string
	Suffix            *string
	Phone             *string
	ProfilePictureURL *string
	ResumeURL         *string
}

// Empty reports whether no column is set.
func (u JobseekerUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Suffix == nil &&
		u.Phone == nil && u.ProfilePictureURL == nil && u.ResumeURL == nil
}

// FindByRole dispatches to the table backing role.
func FindByRole(ctx context.Context, r ProfileRepository, role entity.Role, id string) (entity.Profile, error) {
	switch role {
	case entity.RoleAdmin:
		p, err := r.FindAdmin(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	case entity.RoleEmployer:
		p, err := r.FindEmployer(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	case entity.RoleJobseeker:
		p, err := r.FindJobseeker(ctx, id)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, ErrProfileNotFound
}
