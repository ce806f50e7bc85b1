package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/live-voting-service/internal/http/middleware"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type VoteHandler struct {
	votes       *service.VoteService
	broadcaster Broadcaster
}

func NewVoteHandler(votes *service.VoteService, broadcaster Broadcaster) *VoteHandler {
	return &VoteHandler{votes: votes, broadcaster: broadcaster}
}

type castRequest struct {
	AgendaID string `json:"agendaId"`
	Choice   string `json:"choice"`
}

// Cast is the HTTP fallback of vote:cast. The participant comes from the
// credential, never from the body.
func (h *VoteHandler) Cast(w http.ResponseWriter, r *http.Request) {
	participant, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	var req castRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	result, err := h.votes.Cast(r.Context(), participant.ParticipantID, req.AgendaID, req.Choice, "http")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.broadcaster != nil {
		h.broadcaster.VoteRecorded(r.Context(), result)
	}
	response.JSON(w, r, http.StatusCreated, result.Vote)
}

func (h *VoteHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.votes.Statistics(r.Context(), chi.URLParam(r, "agendaID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, stats)
}

func (h *VoteHandler) HasVoted(w http.ResponseWriter, r *http.Request) {
	participant, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	voted, err := h.votes.HasVoted(r.Context(), participant.ParticipantID, chi.URLParam(r, "agendaID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, map[string]bool{"hasVoted": voted})
}

func (h *VoteHandler) MyVote(w http.ResponseWriter, r *http.Request) {
	participant, ok := middleware.ParticipantFromContext(r.Context())
	if !ok {
		response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
		return
	}
	vote, err := h.votes.MyVote(r.Context(), participant.ParticipantID, chi.URLParam(r, "agendaID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, vote)
}
