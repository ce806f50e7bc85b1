package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type AgendaHandler struct {
	agendas     *service.AgendaService
	broadcaster Broadcaster
}

func NewAgendaHandler(agendas *service.AgendaService, broadcaster Broadcaster) *AgendaHandler {
	return &AgendaHandler{agendas: agendas, broadcaster: broadcaster}
}

type stageRequest struct {
	Stage domain.Stage `json:"stage"`
}

type stageResponse struct {
	AgendaID string             `json:"agendaId"`
	Stage    domain.Stage       `json:"stage"`
	From     domain.Stage       `json:"from"`
	Changed  bool               `json:"changed"`
	Stats    *domain.Statistics `json:"stats,omitempty"`
}

func (h *AgendaHandler) Stage(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req stageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	change, err := h.agendas.Transition(r.Context(), actor, chi.URLParam(r, "agendaID"), req.Stage)
	h.respond(w, r, change, err)
}

func (h *AgendaHandler) End(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	change, err := h.agendas.End(r.Context(), actor, chi.URLParam(r, "agendaID"))
	h.respond(w, r, change, err)
}

func (h *AgendaHandler) Publish(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	change, err := h.agendas.Publish(r.Context(), actor, chi.URLParam(r, "agendaID"))
	h.respond(w, r, change, err)
}

func (h *AgendaHandler) respond(w http.ResponseWriter, r *http.Request, change *service.StageChange, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats := change.Stats
	if h.broadcaster != nil {
		if announced := h.broadcaster.AnnounceStage(r.Context(), change); announced != nil {
			stats = announced
		}
	}
	response.JSON(w, r, http.StatusOK, stageResponse{
		AgendaID: change.Agenda.ID,
		Stage:    change.Agenda.Stage,
		From:     change.From,
		Changed:  change.Changed,
		Stats:    stats,
	})
}
