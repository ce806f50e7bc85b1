package service

import (
	"context"
	"fmt"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
)

const MaxTokensPerIssue = 500

type TokenMetadata struct {
	ID      string              `json:"id"`
	Revoked bool                `json:"revoked"`
	Bound   bool                `json:"bound"`
	Session SessionPublicFields `json:"session"`
}

type SessionPublicFields struct {
	ID              string               `json:"id"`
	Name            string               `json:"name"`
	Status          domain.SessionStatus `json:"status"`
	EntryMode       domain.EntryMode     `json:"entryMode"`
	GeofenceEnabled bool                 `json:"geofenceEnabled"`
	AllowAnonymous  bool                 `json:"allowAnonymous"`
	StadiumTheme    string               `json:"stadiumTheme"`
	VoterTheme      string               `json:"voterTheme"`
}

func PublicFields(s *domain.Session) SessionPublicFields {
	return SessionPublicFields{
		ID:              s.ID,
		Name:            s.Name,
		Status:          s.Status,
		EntryMode:       s.EntryMode,
		GeofenceEnabled: s.GeofenceEnabled,
		AllowAnonymous:  s.AllowAnonymous,
		StadiumTheme:    s.StadiumTheme,
		VoterTheme:      s.VoterTheme,
	}
}

type EntryTokenService struct {
	tokens     repository.EntryTokenRepository
	sessions   repository.SessionRepository
	authorizer *SessionAuthorizer
	audit      AuditRecorder
}

func NewEntryTokenService(tokens repository.EntryTokenRepository, sessions repository.SessionRepository, authorizer *SessionAuthorizer, audit AuditRecorder) *EntryTokenService {
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	return &EntryTokenService{tokens: tokens, sessions: sessions, authorizer: authorizer, audit: audit}
}

func (s *EntryTokenService) Issue(ctx context.Context, actor Actor, sessionID string, count int) ([]domain.EntryToken, error) {
	sessionID = domain.NormalizeID(sessionID)
	if count < 1 || count > MaxTokensPerIssue {
		return nil, fmt.Errorf("%w: count must be between 1 and %d", domain.ErrInvalidInput, MaxTokensPerIssue)
	}
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	return s.tokens.CreateBatch(ctx, sessionID, count)
}

func (s *EntryTokenService) Metadata(ctx context.Context, tokenID string) (*TokenMetadata, error) {
	token, err := s.tokens.FindByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.FindByID(ctx, token.SessionID)
	if err != nil {
		return nil, err
	}
	return &TokenMetadata{
		ID:      token.ID,
		Revoked: token.Revoked,
		Bound:   token.Bound(),
		Session: PublicFields(session),
	}, nil
}

// RevokeAll revokes every outstanding token of the session.
func (s *EntryTokenService) RevokeAll(ctx context.Context, actor Actor, sessionID string) (int64, error) {
	sessionID = domain.NormalizeID(sessionID)
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return 0, err
	}
	n, err := s.tokens.RevokeBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, AuditEntry{
		Type:      domain.AuditTokensRevoked,
		SessionID: sessionID,
		Data:      map[string]any{"revoked": n, "actor": actor.UserID},
	})
	return n, nil
}
