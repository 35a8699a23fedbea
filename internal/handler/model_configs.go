package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stepwise-ai/stepwise/internal/service"
)

type ModelConfigHandler struct {
	svc *service.ModelConfigService
}

func NewModelConfigHandler(svc *service.ModelConfigService) *ModelConfigHandler {
	return &ModelConfigHandler{svc: svc}
}

// GET /v1/model-configs
func (h *ModelConfigHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list model configs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"model_configs": items})
}

// GET /v1/model-configs/{config_id}
func (h *ModelConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Get(r.Context(), chi.URLParam(r, "config_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load model config")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "model config not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// POST /v1/model-configs
func (h *ModelConfigHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string   `json:"name"`
		Provider    string   `json:"provider"`
		Model       string   `json:"model"`
		APIKey      string   `json:"api_key"`
		APIKeyEnv   string   `json:"api_key_env"`
		BaseURL     string   `json:"base_url"`
		MaxTokens   *int     `json:"max_tokens"`
		Temperature *float64 `json:"temperature"`
		IsDefault   bool     `json:"is_default"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.Create(r.Context(), service.CreateModelConfigInput{
		Name:        body.Name,
		Provider:    body.Provider,
		Model:       body.Model,
		APIKey:      body.APIKey,
		APIKeyEnv:   body.APIKeyEnv,
		BaseURL:     body.BaseURL,
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
		IsDefault:   body.IsDefault,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// PUT /v1/model-configs/{config_id}
func (h *ModelConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        *string  `json:"name"`
		Provider    *string  `json:"provider"`
		Model       *string  `json:"model"`
		APIKey      *string  `json:"api_key"`
		APIKeyEnv   *string  `json:"api_key_env"`
		BaseURL     *string  `json:"base_url"`
		MaxTokens   *int     `json:"max_tokens"`
		Temperature *float64 `json:"temperature"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	item, err := h.svc.Update(r.Context(), chi.URLParam(r, "config_id"), service.UpdateModelConfigInput{
		Name:        body.Name,
		Provider:    body.Provider,
		Model:       body.Model,
		APIKey:      body.APIKey,
		APIKeyEnv:   body.APIKeyEnv,
		BaseURL:     body.BaseURL,
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "model config not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DELETE /v1/model-configs/{config_id}
func (h *ModelConfigHandler) Delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.svc.Delete(r.Context(), chi.URLParam(r, "config_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete model config")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "model config not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// POST /v1/model-configs/{config_id}/default
func (h *ModelConfigHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.SetDefault(r.Context(), chi.URLParam(r, "config_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to set default model config")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "model config not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
