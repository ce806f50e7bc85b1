package service

import (
	"context"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

// AuditLogService exposes the persisted trail of one session to its owner.
type AuditLogService struct {
	repo       repository.AuditRepository
	authorizer *SessionAuthorizer
}

func NewAuditLogService(repo repository.AuditRepository, authorizer *SessionAuthorizer) *AuditLogService {
	return &AuditLogService{repo: repo, authorizer: authorizer}
}

func (s *AuditLogService) List(ctx context.Context, actor Actor, sessionID string, page repository.PageRequest) (repository.PageResult[domain.AuditEvent], error) {
	sessionID = domain.NormalizeID(sessionID)
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return repository.PageResult[domain.AuditEvent]{}, err
	}
	return s.repo.ListBySession(ctx, sessionID, page)
}
