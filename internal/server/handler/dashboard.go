package handler

import (
	"net/http"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// DashboardReader exposes the live dashboard state.
type DashboardReader interface {
	Status() domain.DashboardStatus
	Feed() domain.FeedSnapshot
}

var _ DashboardReader = (*service.Dashboard)(nil)

// DashboardHandler serves the status and feed endpoints.
type DashboardHandler struct {
	dash DashboardReader
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(dash DashboardReader) *DashboardHandler {
	return &DashboardHandler{dash: dash}
}

// GetStatus responds with mode, session state, preset and uptime.
// GET /api/status
func (h *DashboardHandler) GetStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.dash.Status())
}

// GetFeed responds with the ranked top rows and their flashes.
// GET /api/feed
func (h *DashboardHandler) GetFeed(w http.ResponseWriter, _ *http.Request) {
	snap := h.dash.Feed()
	if snap.Rows == nil {
		snap.Rows = []domain.FeedRow{}
	}
	writeJSON(w, http.StatusOK, snap)
}
