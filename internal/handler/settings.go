package handler

import (
	"net/http"

	"github.com/stepwise-ai/stepwise/internal/service"
	"github.com/stepwise-ai/stepwise/internal/settings"
)

type SettingsHandler struct {
	settings *settings.Service
	sseMan   *service.SSEManager
}

func NewSettingsHandler(settingsSvc *settings.Service, sseMan *service.SSEManager) *SettingsHandler {
	return &SettingsHandler{settings: settingsSvc, sseMan: sseMan}
}

// GET /v1/settings/decomposition
func (h *SettingsHandler) GetDecomposition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"enabled": h.settings.DecompositionEnabled(r.Context()),
	})
}

// PUT /v1/settings/decomposition
func (h *SettingsHandler) PutDecomposition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Enabled == nil {
		writeError(w, http.StatusBadRequest, "enabled is required")
		return
	}
	if err := h.settings.SetDecompositionEnabled(r.Context(), *body.Enabled); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist setting")
		return
	}

	if h.sseMan != nil {
		h.sseMan.PublishJSON(service.TopicActivity, "settings.updated", map[string]any{
			"decomposition_enabled": *body.Enabled,
		})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
}
