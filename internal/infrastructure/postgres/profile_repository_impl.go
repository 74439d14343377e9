package postgres

import (
	"context"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

type ProfileRepository struct {
	db Querier
}

func NewProfileRepository(db Querier) *ProfileRepository {
	return &ProfileRepository{db: db}
}

type scanner interface{ Scan(...any) error }

func scanAdmin(row scanner) (*entity.AdminProfile, error) {
	p := &entity.AdminProfile{}
	var tag *string
	if err := row.Scan(&p.ID, &p.Email, &p.Role, &tag, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err, repository.ErrProfileNotFound)
	}
	p.Tag = deref(tag)
	return p, nil
}

func scanEmployer(row scanner) (*entity.EmployerProfile, error) {
	p := &entity.EmployerProfile{}
	var business, logo, tag *string
	if err := row.Scan(&p.ID, &p.Email, &business, &logo, &p.VerificationStatus, &tag,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err, repository.ErrProfileNotFound)
	}
	p.BusinessName, p.CompanyLogoURL, p.Tag = deref(business), deref(logo), deref(tag)
	return p, nil
}

func scanJobseeker(row scanner) (*entity.JobseekerProfile, error) {
	p := &entity.JobseekerProfile{}
	var first, last, suffix, phone, picture, resume, tag *string
	if err := row.Scan(&p.ID, &p.Email, &first, &last, &suffix, &phone, &picture, &resume, &tag,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, mapErr(err, repository.ErrProfileNotFound)
	}
	p.FirstName, p.LastName, p.Suffix = deref(first), deref(last), deref(suffix)
	p.Phone, p.ProfilePictureURL, p.ResumeURL = deref(phone), deref(picture), deref(resume)
	p.Tag = deref(tag)
	return p, nil
}

const (
	adminColumns     = `id, email, role, usertype, created_at, updated_at`
	employerColumns  = `id, email, business_name, company_logo_url, verification_status, usertype, created_at, updated_at`
	jobseekerColumns = `id, email, first_name, last_name, suffix, phone, profile_picture_url, resume_url, usertype, created_at, updated_at`
)

func (r *ProfileRepository) FindAdmin(ctx context.Context, id string) (*entity.AdminProfile, error) {
	return scanAdmin(r.db.QueryRow(ctx, `SELECT `+adminColumns+` FROM admin_profiles WHERE id = $1`, id))
}

func (r *ProfileRepository) FindEmployer(ctx context.Context, id string) (*entity.EmployerProfile, error) {
	return scanEmployer(r.db.QueryRow(ctx, `SELECT `+employerColumns+` FROM employer_profiles WHERE id = $1`, id))
}

func (r *ProfileRepository) FindJobseeker(ctx context.Context, id string) (*entity.JobseekerProfile, error) {
	return scanJobseeker(r.db.QueryRow(ctx, `SELECT `+jobseekerColumns+` FROM jobseeker_profiles WHERE id = $1`, id))
}

func (r *ProfileRepository) CreateAdmin(ctx context.Context, p *entity.AdminProfile) error {
	if p.Role == "" {
		p.Role = string(entity.RoleAdmin)
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO admin_profiles (id, email, role, usertype)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, p.Role, nullable(p.Tag))
	return mapErr(row.Scan(&p.CreatedAt, &p.UpdatedAt), repository.ErrProfileNotFound)
}

func (r *ProfileRepository) CreateEmployer(ctx context.Context, p *entity.EmployerProfile) error {
	if p.VerificationStatus == "" {
		p.VerificationStatus = "pending"
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO employer_profiles (id, email, business_name, verification_status, usertype)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, nullable(p.BusinessName), p.VerificationStatus, nullable(p.Tag))
	return mapErr(row.Scan(&p.CreatedAt, &p.UpdatedAt), repository.ErrProfileNotFound)
}

func (r *ProfileRepository) CreateJobseeker(ctx context.Context, p *entity.JobseekerProfile) error {
	row := r.db.QueryRow(ctx, `
		INSERT INTO jobseeker_profiles (id, email, first_name, last_name, suffix, phone, usertype)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`, p.ID, p.Email, nullable(p.FirstName), nullable(p.LastName), nullable(p.Suffix),
		nullable(p.Phone), nullable(p.Tag))
	return mapErr(row.Scan(&p.CreatedAt, &p.UpdatedAt), repository.ErrProfileNotFound)
}

func (r *ProfileRepository) UpdateJobseeker(ctx context.Context, id string, in repository.JobseekerUpdate) (*entity.JobseekerProfile, error) {
	return scanJobseeker(r.db.QueryRow(ctx, `
		UPDATE jobseeker_profiles SET
			first_name          = COALESCE($2, first_name),
			last_name           = COALESCE($3, last_name),
			suffix              = COALESCE($4, suffix),
			phone               = COALESCE($5, phone),
			profile_picture_url = COALESCE($6, profile_picture_url),
			resume_url          = COALESCE($7, resume_url),
			updated_at          = now()
		WHERE id = $1
		RETURNING `+jobseekerColumns,
		id, in.FirstName, in.LastName, in.Suffix, in.Phone, in.ProfilePictureURL, in.ResumeURL))
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
