package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

func TestFindEmployer_ScansNullableColumns(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{"u1", "e@x.test", strp("Acme"), nil, "approved", nil, now, now}}}
	repo := NewProfileRepository(q)

	p, err := repo.FindEmployer(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", p.BusinessName)
	assert.Empty(t, p.CompanyLogoURL)
	assert.Equal(t, entity.RoleEmployer, p.UserType())
	assert.Contains(t, q.queries[0].sql, "FROM employer_profiles")
	assert.Equal(t, []any{"u1"}, q.queries[0].args)
}

func TestFindAdmin_NoRowsIsProfileNotFound(t *testing.T) {
	repo := NewProfileRepository(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := repo.FindAdmin(context.Background(), "u1")
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
}

func TestFindJobseeker_TransientErrorPassesThrough(t *testing.T) {
	boom := errors.New("conn reset")
	repo := NewProfileRepository(&fakeQuerier{row: fakeRow{err: boom}})

	_, err := repo.FindJobseeker(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, repository.ErrProfileNotFound)
}

func TestCreateJobseeker_UniqueViolation(t *testing.T) {
	repo := NewProfileRepository(&fakeQuerier{row: fakeRow{err: &pgconn.PgError{Code: "23505"}}})

	err := repo.CreateJobseeker(context.Background(), &entity.JobseekerProfile{ID: "u1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateKey)
}

func TestCreateEmployer_DefaultsPending(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{now, now}}}
	p := &entity.EmployerProfile{ID: "u1", Email: "e@x.test", Tag: "employer"}

	require.NoError(t, NewProfileRepository(q).CreateEmployer(context.Background(), p))
	assert.Equal(t, "pending", p.VerificationStatus)
	assert.Equal(t, now, p.CreatedAt)
	args := q.queries[0].args
	assert.Nil(t, args[2].(*string))
	assert.Equal(t, "employer", *args[4].(*string))
}

func TestUpdateJobseeker_UsesCoalesce(t *testing.T) {
	now := time.Now()
	q := &fakeQuerier{row: fakeRow{values: []any{"u1", "j@x.test", strp("Ana"), strp("Cruz"), nil, nil, nil, nil, strp("jobseeker"), now, now}}}

	p, err := NewProfileRepository(q).UpdateJobseeker(context.Background(), "u1", repository.JobseekerUpdate{FirstName: strp("Ana")})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.FirstName)
	assert.True(t, strings.Contains(q.queries[0].sql, "COALESCE($2, first_name)"))
}
