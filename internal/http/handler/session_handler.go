package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/observability"
	"github.com/sandeepkv93/live-voting-service/internal/realtime"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type SessionHandler struct {
	sessions    *service.SessionService
	tokens      *service.EntryTokenService
	auditLog    *service.AuditLogService
	broadcaster Broadcaster
}

func NewSessionHandler(
	sessions *service.SessionService,
	tokens *service.EntryTokenService,
	auditLog *service.AuditLogService,
	broadcaster Broadcaster,
) *SessionHandler {
	return &SessionHandler{sessions: sessions, tokens: tokens, auditLog: auditLog, broadcaster: broadcaster}
}

type issueTokensRequest struct {
	Count int `json:"count"`
}

type stadiumRequest struct {
	Action string `json:"action"`
}

func (h *SessionHandler) IssueTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req issueTokensRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tokens, err := h.tokens.Issue(r.Context(), actor, chi.URLParam(r, "sessionID"), req.Count)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ids := make([]string, 0, len(tokens))
	for _, t := range tokens {
		ids = append(ids, t.ID)
	}
	response.JSON(w, r, http.StatusCreated, map[string]any{"tokens": ids, "count": len(ids)})
}

func (h *SessionHandler) RevokeTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	n, err := h.tokens.RevokeAll(r.Context(), actor, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "session.tokens.revoked", "session_id", sessionID, "count", n)
	if h.broadcaster != nil {
		h.broadcaster.AuthRequired(r.Context(), sessionID, reauthMessage)
	}
	response.JSON(w, r, http.StatusOK, map[string]int64{"revoked": n})
}

func (h *SessionHandler) ResetParticipants(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	n, err := h.sessions.ResetParticipants(r.Context(), actor, sessionID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "session.participants.reset", "session_id", sessionID, "count", n)
	if h.broadcaster != nil {
		h.broadcaster.AuthRequired(r.Context(), sessionID, "Session was reset, please join again")
	}
	response.JSON(w, r, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *SessionHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var update service.SettingsUpdate
	if err := decodeJSON(r, &update); err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	session, err := h.sessions.UpdateSettings(r.Context(), actor, sessionID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.SettingsUpdated(r.Context(), session.ID, update)
	}
	response.JSON(w, r, http.StatusOK, service.PublicFields(session))
}

func (h *SessionHandler) RotateAccessCode(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	view, err := h.sessions.RotateAccessCode(r.Context(), actor, chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, view)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Delete(r.Context(), actor, sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	observability.Audit(r, "session.deleted", "session_id", sessionID)
	response.JSON(w, r, http.StatusOK, map[string]string{"deleted": sessionID})
}

func (h *SessionHandler) Stadium(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req stadiumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := realtime.ValidateStadiumAction(req.Action); err != nil {
		writeError(w, r, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	if err := h.sessions.Authorize(r.Context(), actor, sessionID); err != nil {
		writeError(w, r, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.StadiumControl(r.Context(), sessionID, req.Action)
	}
	response.JSON(w, r, http.StatusOK, map[string]string{"action": req.Action})
}

func (h *SessionHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := h.auditLog.List(r.Context(), actor, chi.URLParam(r, "sessionID"), pageRequest(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, page)
}
