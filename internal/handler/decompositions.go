package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/stepwise-ai/stepwise/internal/service"
)

type DecompositionHandler struct {
	svc *service.DecompositionService
}

func NewDecompositionHandler(svc *service.DecompositionService) *DecompositionHandler {
	return &DecompositionHandler{svc: svc}
}

// POST /v1/decompositions
func (h *DecompositionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	dec := h.svc.Decompose(r.Context(), body.Prompt)

	resp := map[string]any{
		"decomposition_id": dec.DecompositionID,
		"tasks":            dec.Tasks,
		"source":           dec.Source,
	}
	if dec.Model != "" {
		resp["model"] = dec.Model
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /v1/decompositions?limit=20
func (h *DecompositionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list decompositions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decompositions": items})
}

// GET /v1/decompositions/{decomposition_id}
func (h *DecompositionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "decomposition_id")
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load decomposition")
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "decomposition not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}
