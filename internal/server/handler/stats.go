package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// StatsSource serves the cached stats panel and fixtures list.
type StatsSource interface {
	Stats(ctx context.Context) (domain.BetSummary, error)
	Fixtures(ctx context.Context) ([]domain.Fixture, error)
}

var _ StatsSource = (*service.StatsPoller)(nil)

// StatsHandler serves the stats and fixtures endpoints.
type StatsHandler struct {
	stats  StatsSource
	logger *slog.Logger
}

// NewStatsHandler creates a StatsHandler.
func NewStatsHandler(stats StatsSource, logger *slog.Logger) *StatsHandler {
	return &StatsHandler{stats: stats, logger: logger}
}

// GetStats returns the bet summary.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	sum, err := h.stats.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GetFixtures returns the cached fixtures list.
// GET /api/fixtures
func (h *StatsHandler) GetFixtures(w http.ResponseWriter, r *http.Request) {
	fixtures, err := h.stats.Fixtures(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to load fixtures")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"fixtures": fixtures})
}
