package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pesdo/placement-portal/internal/domain/entity"
	"github.com/pesdo/placement-portal/internal/domain/repository"
)

type AuditRepository struct {
	db Querier
}

func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

// userUUID yields a NULL uuid for empty or malformed ids so anonymous
// attempts are still recorded.
func userUUID(id string) pgtype.UUID {
	var uid pgtype.UUID
	if id == "" {
		return uid
	}
	if parsed, err := uuid.Parse(id); err == nil {
		uid.Bytes = parsed
		uid.Valid = true
	}
	return uid
}

func (r *AuditRepository) InsertLoginLog(ctx context.Context, e *entity.LoginLog) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO login_log (user_id, user_type, email, login_status, failure_reason, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, userUUID(e.UserID), e.UserType, e.Email, e.Status, nullable(e.FailureReason), nullable(e.IP), nullable(e.UserAgent))
	return err
}

func (r *AuditRepository) InsertActivity(ctx context.Context, e *entity.ActivityLog) error {
	md := e.Metadata
	if md == nil {
		md = map[string]any{}
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO activity_log (user_id, user_type, action_type, action_description, entity_type, entity_id, metadata, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, userUUID(e.UserID), nullable(e.UserType), e.ActionType, nullable(e.ActionDescription),
		nullable(e.EntityType), nullable(e.EntityID), md, nullable(e.IP), nullable(e.UserAgent))
	return err
}

var _ repository.AuditRepository = (*AuditRepository)(nil)
