package repository

import (
	"context"

	"github.com/pesdo/placement-portal/internal/domain/entity"
)

// AuditRepository appends to the login and activity logs.
type AuditRepository interface {
	InsertLoginLog(ctx context.Context, e *entity.LoginLog) error
	InsertActivity(ctx context.Context, e *entity.ActivityLog) error
}
