package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// PresetService reads presets and switches the live session.
type PresetService interface {
	List(ctx context.Context, activeOnly bool) ([]domain.Preset, error)
	Get(ctx context.Context, id int64) (domain.Preset, error)
	HiddenItems(ctx context.Context, id int64) ([]domain.HiddenItem, error)
	Select(ctx context.Context, id int64) (domain.Preset, error)
	Clear(ctx context.Context)
}

var _ PresetService = (*service.PresetService)(nil)

// PresetHandler serves the preset and session endpoints.
type PresetHandler struct {
	presets PresetService
	logger  *slog.Logger
}

// NewPresetHandler creates a PresetHandler.
func NewPresetHandler(presets PresetService, logger *slog.Logger) *PresetHandler {
	return &PresetHandler{presets: presets, logger: logger}
}

// ListPresets returns presets. ?active=true limits to active ones.
// GET /api/presets
func (h *PresetHandler) ListPresets(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	presets, err := h.presets.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list presets")
		return
	}
	if presets == nil {
		presets = []domain.Preset{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"presets": presets})
}

// GetPreset returns one preset.
// GET /api/presets/{id}
func (h *PresetHandler) GetPreset(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset id")
		return
	}
	p, err := h.presets.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to get preset")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListHiddenItems returns the unexpired hide journal of a preset.
// GET /api/presets/{id}/hidden-items
func (h *PresetHandler) ListHiddenItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid preset id")
		return
	}
	items, err := h.presets.HiddenItems(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list hidden items")
		return
	}
	if items == nil {
		items = []domain.HiddenItem{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hidden_items": items})
}

type selectPresetRequest struct {
	PresetID int64 `json:"preset_id"`
}

// SelectPreset switches the live session to a preset.
// PUT /api/session/preset
func (h *PresetHandler) SelectPreset(w http.ResponseWriter, r *http.Request) {
	var req selectPresetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PresetID <= 0 {
		writeError(w, http.StatusBadRequest, "preset_id is required")
		return
	}

	p, err := h.presets.Select(r.Context(), req.PresetID)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to select preset")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ClearPreset stops the live session.
// DELETE /api/session/preset
func (h *PresetHandler) ClearPreset(w http.ResponseWriter, r *http.Request) {
	h.presets.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
