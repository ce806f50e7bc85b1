package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

type SettingsUpdate struct {
	Name              *string               `json:"name,omitempty"`
	GeofenceEnabled   *bool                 `json:"geofenceEnabled,omitempty"`
	Latitude          *float64              `json:"latitude,omitempty"`
	Longitude         *float64              `json:"longitude,omitempty"`
	RadiusMeters      *float64              `json:"radiusMeters,omitempty"`
	StrictDeviceCheck *bool                 `json:"strictDeviceCheck,omitempty"`
	AllowAnonymous    *bool                 `json:"allowAnonymous,omitempty"`
	StadiumTheme      *string               `json:"stadiumTheme,omitempty"`
	VoterTheme        *string               `json:"voterTheme,omitempty"`
	Status            *domain.SessionStatus `json:"status,omitempty"`
}

func (u SettingsUpdate) validate() error {
	if u.RadiusMeters != nil && *u.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be positive", domain.ErrInvalidInput)
	}
	if u.Latitude != nil && (*u.Latitude < -90 || *u.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", domain.ErrInvalidInput)
	}
	if u.Longitude != nil && (*u.Longitude < -180 || *u.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", domain.ErrInvalidInput)
	}
	if u.Status != nil {
		switch *u.Status {
		case domain.SessionStatusPending, domain.SessionStatusActive, domain.SessionStatusCompleted:
		default:
			return fmt.Errorf("%w: unknown session status %q", domain.ErrInvalidInput, *u.Status)
		}
	}
	return nil
}

type AccessCodeView struct {
	Code      string    `json:"accessCode"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionService runs the session-level control actions of an owner.
type SessionService struct {
	sessions      repository.SessionRepository
	participants  repository.ParticipantRepository
	authorizer    *SessionAuthorizer
	audit         AuditRecorder
	accessCodeTTL time.Duration
	now           func() time.Time
}

func NewSessionService(
	sessions repository.SessionRepository,
	participants repository.ParticipantRepository,
	authorizer *SessionAuthorizer,
	audit AuditRecorder,
	accessCodeTTL time.Duration,
) *SessionService {
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	return &SessionService{
		sessions:      sessions,
		participants:  participants,
		authorizer:    authorizer,
		audit:         audit,
		accessCodeTTL: accessCodeTTL,
		now:           time.Now,
	}
}

func (s *SessionService) Public(ctx context.Context, sessionID string) (SessionPublicFields, error) {
	sessionID = domain.NormalizeID(sessionID)
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return SessionPublicFields{}, err
	}
	return PublicFields(session), nil
}

func (s *SessionService) UpdateSettings(ctx context.Context, actor Actor, sessionID string, update SettingsUpdate) (*domain.Session, error) {
	sessionID = domain.NormalizeID(sessionID)
	if err := update.validate(); err != nil {
		return nil, err
	}
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	return s.sessions.UpdateSettings(ctx, sessionID, repository.SessionSettings{
		Name:              update.Name,
		GeofenceEnabled:   update.GeofenceEnabled,
		Latitude:          update.Latitude,
		Longitude:         update.Longitude,
		RadiusMeters:      update.RadiusMeters,
		StrictDeviceCheck: update.StrictDeviceCheck,
		AllowAnonymous:    update.AllowAnonymous,
		StadiumTheme:      update.StadiumTheme,
		VoterTheme:        update.VoterTheme,
		Status:            update.Status,
	})
}

// RotateAccessCode stores a fresh four digit code that expires after the
// configured TTL.
func (s *SessionService) RotateAccessCode(ctx context.Context, actor Actor, sessionID string) (*AccessCodeView, error) {
	sessionID = domain.NormalizeID(sessionID)
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return nil, err
	}
	code, err := security.GenerateAccessCode()
	if err != nil {
		return nil, err
	}
	expiresAt := s.now().Add(s.accessCodeTTL).UTC()
	if err := s.sessions.SetAccessCode(ctx, sessionID, code, expiresAt); err != nil {
		return nil, err
	}
	return &AccessCodeView{Code: code, ExpiresAt: expiresAt}, nil
}

// ResetParticipants removes every participant of the session along with
// their votes. Callers are expected to tell connected clients to
// re-authenticate.
func (s *SessionService) ResetParticipants(ctx context.Context, actor Actor, sessionID string) (int64, error) {
	sessionID = domain.NormalizeID(sessionID)
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return 0, err
	}
	n, err := s.participants.DeleteBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, AuditEntry{
		Type:      domain.AuditParticipantsReset,
		SessionID: sessionID,
		Data:      map[string]any{"deleted": n, "actor": actor.UserID},
	})
	return n, nil
}

func (s *SessionService) Delete(ctx context.Context, actor Actor, sessionID string) error {
	sessionID = domain.NormalizeID(sessionID)
	if _, err := s.authorizer.Authorize(ctx, actor, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return err
	}
	// Session audit rows are gone with the session; keep the trail unscoped.
	s.audit.Record(ctx, AuditEntry{
		Type: domain.AuditSessionDeleted,
		Data: map[string]any{"session_id": sessionID, "actor": actor.UserID},
	})
	return nil
}

// Authorize exposes the ownership check for control actions that carry no
// state change of their own, such as stadium display commands.
func (s *SessionService) Authorize(ctx context.Context, actor Actor, sessionID string) error {
	_, err := s.authorizer.Authorize(ctx, actor, sessionID)
	return err
}
