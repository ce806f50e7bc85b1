package repository

import (
	"context"

	"github.com/sandeepkv93/live-voting-service/internal/domain"

	"gorm.io/gorm"
)

type AuditRepository interface {
	Create(ctx context.Context, event *domain.AuditEvent) error
	ListBySession(ctx context.Context, sessionID string, req PageRequest) (PageResult[domain.AuditEvent], error)
}

type GormAuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &GormAuditRepository{db: db} }

func (r *GormAuditRepository) Create(ctx context.Context, event *domain.AuditEvent) error {
	err := r.db.WithContext(ctx).Create(event).Error
	observe(ctx, "audit_event", "create", err)
	return err
}

func (r *GormAuditRepository) ListBySession(ctx context.Context, sessionID string, req PageRequest) (PageResult[domain.AuditEvent], error) {
	query := r.db.WithContext(ctx).
		Model(&domain.AuditEvent{}).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Order("id DESC")
	page, err := paginate[domain.AuditEvent](query, req)
	observe(ctx, "audit_event", "list_by_session", err)
	return page, err
}
