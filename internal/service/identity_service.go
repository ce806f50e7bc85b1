package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/geo"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/repository"
	"github.com/sandeepkv93/live-voting-service/internal/security"
)

const (
	maxDisplayNameLength = 100
	tokenMissTTL         = time.Minute
)

type UniqueTokenRequest struct {
	TokenID      string
	Fingerprint  string
	Location     *geo.Point
	SkipGeofence bool
	AccessCode   string
	IP           string
	UserAgent    string
}

type SharedLinkRequest struct {
	SessionID    string
	DisplayName  string
	Fingerprint  string
	Location     *geo.Point
	SkipGeofence bool
	AccessCode   string
	IP           string
	UserAgent    string
}

type AuthResult struct {
	Credential  string              `json:"accessToken"`
	ExpiresAt   time.Time           `json:"expiresAt"`
	Participant *domain.Participant `json:"voter"`
	SessionID   string              `json:"sessionId"`
}

type IdentityService struct {
	sessions     repository.SessionRepository
	tokens       repository.EntryTokenRepository
	participants repository.ParticipantRepository
	users        repository.UserRepository
	jwt          *security.JWTManager
	credTTL      time.Duration
	misses       LookupMissCache
	audit        AuditRecorder
	logger       *slog.Logger
	now          func() time.Time
}

func NewIdentityService(
	sessions repository.SessionRepository,
	tokens repository.EntryTokenRepository,
	participants repository.ParticipantRepository,
	users repository.UserRepository,
	jwt *security.JWTManager,
	credTTL time.Duration,
	misses LookupMissCache,
	audit AuditRecorder,
	logger *slog.Logger,
) *IdentityService {
	if misses == nil {
		misses = NoopLookupMissCache{}
	}
	if audit == nil {
		audit = NoopAuditRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{
		sessions:     sessions,
		tokens:       tokens,
		participants: participants,
		users:        users,
		jwt:          jwt,
		credTTL:      credTTL,
		misses:       misses,
		audit:        audit,
		logger:       logger,
		now:          time.Now,
	}
}

// AuthenticateUniqueToken admits the holder of an entry token. The token is
// bound to the presenting device on first use and to that device only.
func (s *IdentityService) AuthenticateUniqueToken(ctx context.Context, req UniqueTokenRequest) (result *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "identity.unique_token")
	defer func() {
		observability.RecordAuthAttempt(ctx, "unique_token", authOutcome(err))
		observability.EndSpan(span, err)
	}()

	token, err := s.loadToken(ctx, req.TokenID)
	if err != nil {
		return nil, err
	}
	if token.Revoked {
		return nil, domain.ErrRevoked
	}
	if !security.ValidFingerprint(req.Fingerprint) {
		return nil, domain.ErrInvalidFingerprint
	}
	if _, err := s.tokens.BindFingerprint(ctx, token.ID, req.Fingerprint, s.now()); err != nil {
		return nil, err
	}

	session, err := s.sessions.FindByID(ctx, token.SessionID)
	if err != nil {
		return nil, err
	}
	if err := s.verifyEntryConditions(session, req.Location, req.SkipGeofence, req.AccessCode); err != nil {
		return nil, err
	}

	participant, err := s.participantForToken(ctx, session, token.ID, req)
	if err != nil {
		return nil, err
	}

	result, err = s.issue(participant, security.ParticipantIdentity{
		ParticipantID: participant.ID,
		SessionID:     session.ID,
		EntryTokenID:  token.ID,
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Type:          domain.AuditParticipantAuthenticated,
		SessionID:     session.ID,
		ParticipantID: participant.ID,
		Data:          map[string]any{"protocol": "unique_token", "token_id": token.ID},
		IP:            req.IP,
		UserAgent:     req.UserAgent,
	})
	return result, nil
}

// AuthenticateSharedLink admits a participant through a session's shared
// link. With strict device checking one device maps to one participant.
func (s *IdentityService) AuthenticateSharedLink(ctx context.Context, req SharedLinkRequest) (result *AuthResult, err error) {
	ctx, span := observability.StartSpan(ctx, "identity.shared_link")
	defer func() {
		observability.RecordAuthAttempt(ctx, "shared_link", authOutcome(err))
		observability.EndSpan(span, err)
	}()

	session, err := s.sessions.FindByID(ctx, domain.NormalizeID(req.SessionID))
	if err != nil {
		return nil, err
	}
	if session.EntryMode != domain.EntryModeSharedLink {
		return nil, fmt.Errorf("%w: session does not allow shared link entry", domain.ErrUnauthorized)
	}
	if !security.ValidFingerprint(req.Fingerprint) {
		return nil, domain.ErrInvalidFingerprint
	}
	name := strings.TrimSpace(req.DisplayName)
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return nil, fmt.Errorf("%w: display name too long", domain.ErrInvalidInput)
	}
	if name == "" && !session.AllowAnonymous {
		return nil, fmt.Errorf("%w: display name required", domain.ErrInvalidInput)
	}
	if err := s.verifyEntryConditions(session, req.Location, req.SkipGeofence, req.AccessCode); err != nil {
		return nil, err
	}

	limit, err := s.participantLimit(ctx, session)
	if err != nil {
		return nil, err
	}
	candidate := &domain.Participant{
		SessionID:          session.ID,
		DeviceFingerprint:  req.Fingerprint,
		IsAnonymous:        name == "",
		AccessCodeVerified: true,
	}
	if name != "" {
		candidate.DisplayName = &name
	}
	if req.Location != nil {
		candidate.Latitude = &req.Location.Latitude
		candidate.Longitude = &req.Location.Longitude
	}

	participant := candidate
	if session.StrictDeviceCheck {
		found, created, err := s.participants.FindOrCreateByFingerprint(ctx, candidate, limit)
		if err != nil {
			return nil, err
		}
		participant = found
		if !created && name != "" && (found.DisplayName == nil || *found.DisplayName != name) {
			if err := s.participants.UpdateIdentity(ctx, found.ID, nil, &name); err != nil {
				return nil, err
			}
			participant.DisplayName = &name
		}
	} else if err := s.participants.CreateWithinQuota(ctx, candidate, limit); err != nil {
		return nil, err
	}

	result, err = s.issue(participant, security.ParticipantIdentity{
		ParticipantID: participant.ID,
		SessionID:     session.ID,
		DisplayName:   name,
		Anonymous:     name == "",
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, AuditEntry{
		Type:          domain.AuditParticipantAuthenticated,
		SessionID:     session.ID,
		ParticipantID: participant.ID,
		Data:          map[string]any{"protocol": "shared_link", "strict_device_check": session.StrictDeviceCheck},
		IP:            req.IP,
		UserAgent:     req.UserAgent,
	})
	return result, nil
}

// BindDevice performs only the device binding step of the unique-token
// protocol, for clients that scan before they collect location and code.
func (s *IdentityService) BindDevice(ctx context.Context, tokenID, fingerprint string) (*domain.EntryToken, *domain.Session, error) {
	token, err := s.loadToken(ctx, tokenID)
	if err != nil {
		return nil, nil, err
	}
	if token.Revoked {
		return nil, nil, domain.ErrRevoked
	}
	if !security.ValidFingerprint(fingerprint) {
		return nil, nil, domain.ErrInvalidFingerprint
	}
	bound, err := s.tokens.BindFingerprint(ctx, token.ID, fingerprint, s.now())
	if err != nil {
		return nil, nil, err
	}
	session, err := s.sessions.FindByID(ctx, bound.SessionID)
	if err != nil {
		return nil, nil, err
	}
	return bound, session, nil
}

func (s *IdentityService) loadToken(ctx context.Context, tokenID string) (*domain.EntryToken, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return nil, domain.ErrNotFound
	}
	if seen, err := s.misses.Seen(ctx, entryTokenMissNamespace, tokenID); err == nil && seen {
		return nil, domain.ErrNotFound
	}
	token, err := s.tokens.FindByID(ctx, tokenID)
	if errors.Is(err, domain.ErrNotFound) {
		if cacheErr := s.misses.Remember(ctx, entryTokenMissNamespace, tokenID, tokenMissTTL); cacheErr != nil {
			s.logger.WarnContext(ctx, "remember token miss failed", "error", cacheErr)
		}
	}
	return token, err
}

func (s *IdentityService) verifyEntryConditions(session *domain.Session, location *geo.Point, skipGeofence bool, accessCode string) error {
	if session.GeofenceEnabled && !skipGeofence {
		if !session.HasGeofence() {
			return fmt.Errorf("%w: session location is not configured", domain.ErrLocationRequired)
		}
		if location == nil || !location.Valid() {
			return domain.ErrLocationRequired
		}
		center := geo.Point{Latitude: *session.Latitude, Longitude: *session.Longitude}
		within, distance := geo.WithinRadius(*location, center, *session.RadiusMeters)
		if !within {
			return fmt.Errorf("%w: %dm away from the venue", domain.ErrOutOfRange, distance)
		}
	}

	if session.AccessCode == nil || *session.AccessCode == "" {
		return fmt.Errorf("%w: session has no access code", domain.ErrInvalidCode)
	}
	if security.NormalizeAccessCode(accessCode) != *session.AccessCode {
		return domain.ErrInvalidCode
	}
	if session.AccessCodeExpiresAt != nil && s.now().After(*session.AccessCodeExpiresAt) {
		return domain.ErrCodeExpired
	}
	return nil
}

func (s *IdentityService) participantForToken(ctx context.Context, session *domain.Session, tokenID string, req UniqueTokenRequest) (*domain.Participant, error) {
	existing, err := s.participants.FindByTokenID(ctx, tokenID)
	if err == nil {
		if existing.DeviceFingerprint != req.Fingerprint {
			fp := req.Fingerprint
			if err := s.participants.UpdateIdentity(ctx, existing.ID, &fp, nil); err != nil {
				return nil, err
			}
			existing.DeviceFingerprint = fp
		}
		if err := s.participants.Touch(ctx, existing.ID, latitude(req.Location), longitude(req.Location), s.now()); err != nil {
			s.logger.WarnContext(ctx, "touch participant failed", "participant_id", existing.ID, "error", err)
		}
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	limit, err := s.participantLimit(ctx, session)
	if err != nil {
		return nil, err
	}
	tid := tokenID
	p := &domain.Participant{
		SessionID:          session.ID,
		TokenID:            &tid,
		DeviceFingerprint:  req.Fingerprint,
		AccessCodeVerified: true,
		Latitude:           latitude(req.Location),
		Longitude:          longitude(req.Location),
	}
	err = s.participants.CreateWithinQuota(ctx, p, limit)
	if errors.Is(err, repository.ErrUniqueViolation) {
		return s.participants.FindByTokenID(ctx, tokenID)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *IdentityService) participantLimit(ctx context.Context, session *domain.Session) (int, error) {
	if session.OwnerID == nil {
		return 0, nil
	}
	owner, err := s.users.FindByID(ctx, *session.OwnerID)
	if errors.Is(err, domain.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return owner.MaxParticipantsPerSession, nil
}

func (s *IdentityService) issue(p *domain.Participant, id security.ParticipantIdentity) (*AuthResult, error) {
	expiresAt := s.now().Add(s.credTTL)
	raw, err := s.jwt.SignParticipantToken(id, s.credTTL)
	if err != nil {
		return nil, fmt.Errorf("sign participant credential: %w", err)
	}
	return &AuthResult{Credential: raw, ExpiresAt: expiresAt, Participant: p, SessionID: id.SessionID}, nil
}

func authOutcome(err error) string {
	if err == nil {
		return "success"
	}
	return strings.ToLower(domain.Code(err))
}

func latitude(p *geo.Point) *float64 {
	if p == nil {
		return nil
	}
	v := p.Latitude
	return &v
}

func longitude(p *geo.Point) *float64 {
	if p == nil {
		return nil
	}
	v := p.Longitude
	return &v
}
