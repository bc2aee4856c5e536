package repository

import (
	"app/internal/domain/model"
	"context"
)

type AuditLogRepository interface {
	Create(ctx context.Context, log model.AuditLog) error
}
