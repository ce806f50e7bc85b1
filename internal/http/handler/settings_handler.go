package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sandeepkv93/live-voting-service/internal/domain"
	"github.com/sandeepkv93/live-voting-service/internal/http/response"
	"github.com/sandeepkv93/live-voting-service/internal/service"
)

type SettingsHandler struct {
	settings *service.SettingsService
}

func NewSettingsHandler(settings *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

type settingRequest struct {
	Value string             `json:"value"`
	Type  domain.SettingType `json:"type"`
}

func (h *SettingsHandler) List(w http.ResponseWriter, r *http.Request) {
	snap := h.settings.Snapshot()
	response.JSON(w, r, http.StatusOK, map[string]any{
		"settings": snap.All(),
		"loadedAt": snap.LoadedAt(),
	})
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req settingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	setting, err := h.settings.Update(r.Context(), actor, chi.URLParam(r, "key"), req.Value, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, setting)
}
