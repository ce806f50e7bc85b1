package service

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

// Actor is an authenticated administrator issuing a control action.
type Actor struct {
	UserID   string
	Username string
	Role     domain.Role
}

// CanControl reports whether the actor may run control actions on session:
// super admins always, vote managers only for sessions they own.
func (a Actor) CanControl(session *domain.Session) bool {
	switch a.Role {
	case domain.RoleSuperAdmin:
		return true
	case domain.RoleVoteManager:
		return a.UserID != "" && session.OwnedBy(a.UserID)
	default:
		return false
	}
}

// SessionAuthorizer loads a session and checks control rights in one step.
type SessionAuthorizer struct {
	sessions repository.SessionRepository
}

func NewSessionAuthorizer(sessions repository.SessionRepository) *SessionAuthorizer {
	return &SessionAuthorizer{sessions: sessions}
}

func (z *SessionAuthorizer) Authorize(ctx context.Context, actor Actor, sessionID string) (*domain.Session, error) {
	sessionID = domain.NormalizeID(sessionID)
	session, err := z.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !actor.CanControl(session) {
		return nil, fmt.Errorf("%w: %s may not control session %s", domain.ErrUnauthorized, actor.Username, sessionID)
	}
	return session, nil
}
