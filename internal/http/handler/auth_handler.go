package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/geo"
	"github.com/sandeepkv93/live-voting-service/internal/http/middleware"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/security"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type AuthHandler struct {
	identity *service.IdentityService
	tokens   *service.EntryTokenService
	sessions *service.SessionService
	admins   *service.AdminAuthService
	jwt      *security.JWTManager
	guard    service.AuthAbuseGuard
}

func NewAuthHandler(
	identity *service.IdentityService,
	tokens *service.EntryTokenService,
	sessions *service.SessionService,
	admins *service.AdminAuthService,
	jwt *security.JWTManager,
	guard service.AuthAbuseGuard,
) *AuthHandler {
	if guard == nil {
		guard = service.NewInMemoryAuthAbuseGuard(service.DefaultAuthAbusePolicy())
	}
	return &AuthHandler{identity: identity, tokens: tokens, sessions: sessions, admins: admins, jwt: jwt, guard: guard}
}

type locationRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (l *locationRequest) point() *geo.Point {
	if l == nil {
		return nil
	}
	return &geo.Point{Latitude: l.Latitude, Longitude: l.Longitude}
}

type uniqueTokenRequest struct {
	TokenID      string           `json:"tokenId"`
	Fingerprint  string           `json:"fingerprint"`
	Location     *locationRequest `json:"location,omitempty"`
	AccessCode   string           `json:"accessCode,omitempty"`
	SkipGeofence bool             `json:"skipGeofence,omitempty"`
}

type sharedLinkRequest struct {
	SessionID    string           `json:"sessionId"`
	DisplayName  string           `json:"displayName"`
	Fingerprint  string           `json:"fingerprint"`
	Location     *locationRequest `json:"location,omitempty"`
	AccessCode   string           `json:"accessCode,omitempty"`
	SkipGeofence bool             `json:"skipGeofence,omitempty"`
}

type bindRequest struct {
	TokenID     string `json:"tokenId"`
	Fingerprint string `json:"fingerprint"`
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHandler) UniqueToken(w http.ResponseWriter, r *http.Request) {
	var req uniqueTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if h.throttled(w, r, service.AuthAbuseScopeAccessCode, req.TokenID, "") {
		return
	}
	result, err := h.identity.AuthenticateUniqueToken(r.Context(), service.UniqueTokenRequest{
		TokenID:      req.TokenID,
		Fingerprint:  req.Fingerprint,
		Location:     req.Location.point(),
		SkipGeofence: req.SkipGeofence && h.operatorPresent(r),
		AccessCode:   req.AccessCode,
		IP:           middleware.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	h.recordAttempt(r.Context(), service.AuthAbuseScopeAccessCode, req.TokenID, "", err, domain.ErrInvalidCode)
	if err != nil {
		observability.Audit(r, "participant.auth.rejected", "protocol", "unique_token", "code", domain.Code(err))
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "participant.auth.accepted", "protocol", "unique_token", "session_id", result.SessionID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) SharedLink(w http.ResponseWriter, r *http.Request) {
	var req sharedLinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	device := req.SessionID + "/" + req.Fingerprint
	if h.throttled(w, r, service.AuthAbuseScopeAccessCode, device, "") {
		return
	}
	result, err := h.identity.AuthenticateSharedLink(r.Context(), service.SharedLinkRequest{
		SessionID:    req.SessionID,
		DisplayName:  req.DisplayName,
		Fingerprint:  req.Fingerprint,
		Location:     req.Location.point(),
		SkipGeofence: req.SkipGeofence && h.operatorPresent(r),
		AccessCode:   req.AccessCode,
		IP:           middleware.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	h.recordAttempt(r.Context(), service.AuthAbuseScopeAccessCode, device, "", err, domain.ErrInvalidCode)
	if err != nil {
		observability.Audit(r, "participant.auth.rejected", "protocol", "shared_link", "code", domain.Code(err))
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "participant.auth.accepted", "protocol", "shared_link", "session_id", result.SessionID)
	response.JSON(w, r, http.StatusOK, result)
}

func (h *AuthHandler) BindDevice(w http.ResponseWriter, r *http.Request) {
	var req bindRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, session, err := h.identity.BindDevice(r.Context(), req.TokenID, req.Fingerprint)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]any{
		"tokenId": token.ID,
		"bound":   true,
		"session": service.PublicFields(session),
	})
}

func (h *AuthHandler) TokenMetadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.tokens.Metadata(r.Context(), chi.URLParam(r, "tokenID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, meta)
}

func (h *AuthHandler) SessionPublic(w http.ResponseWriter, r *http.Request) {
	fields, err := h.sessions.Public(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, fields)
}

func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	ip := middleware.ClientIP(r)
	if h.throttled(w, r, service.AuthAbuseScopeAdminLogin, username, ip) {
		return
	}
	result, err := h.admins.Login(r.Context(), username, req.Password)
	h.recordAttempt(r.Context(), service.AuthAbuseScopeAdminLogin, username, ip, err, domain.ErrUnauthorized)
	if err != nil {
		observability.Audit(r, "admin.login.rejected", "username", req.Username)
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "admin.login.accepted", "user_id", result.UserID)
	response.JSON(w, r, http.StatusOK, result)
}

// operatorPresent reports whether the request also carries a valid admin
// credential. Only operators may waive the geofence for a join.
func (h *AuthHandler) operatorPresent(r *http.Request) bool {
	raw, _ := security.CredentialFromRequest(r)
	if raw == "" {
		return false
	}
	_, err := h.jwt.ParseAdminToken(raw)
	return err == nil
}

// throttled answers 429 while the identity or address is cooling down after
// repeated failures. Guard errors let the attempt through. Access codes are
// tracked per device only: whole venues often share one public address.
func (h *AuthHandler) throttled(w http.ResponseWriter, r *http.Request, scope service.AuthAbuseScope, identity, ip string) bool {
	wait, err := h.guard.Check(r.Context(), scope, identity, ip)
	if err != nil {
		slog.WarnContext(r.Context(), "auth abuse check failed", "scope", scope, "error", err)
		return false
	}
	if wait <= 0 {
		return false
	}
	observability.Audit(r, "auth.throttled", "scope", string(scope))
	secs := response.RetryAfterSeconds(wait)
	response.RetryLater(w, r, wait, "RATE_LIMITED", "too many failed attempts, retry later", map[string]int{"retryAfterSeconds": secs})
	return true
}

// recordAttempt counts failures of kind against the guard and clears the
// counters on success. Other failures are not guessing and are ignored.
func (h *AuthHandler) recordAttempt(ctx context.Context, scope service.AuthAbuseScope, identity, ip string, err, kind error) {
	switch {
	case err == nil:
		if rerr := h.guard.Reset(ctx, scope, identity, ip); rerr != nil {
			slog.WarnContext(ctx, "auth abuse reset failed", "scope", scope, "error", rerr)
		}
	case errors.Is(err, kind):
		if _, rerr := h.guard.RegisterFailure(ctx, scope, identity, ip); rerr != nil {
			slog.WarnContext(ctx, "auth abuse record failed", "scope", scope, "error", rerr)
		}
	}
}
