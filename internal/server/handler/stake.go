package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// StakeService sizes stakes and looks up bankrolls.
type StakeService interface {
	Stake(ctx context.Context, req service.StakeRequest) (domain.StakeResult, error)
	Balance(ctx context.Context, bookmakerKey string) domain.Balance
}

var _ StakeService = (*service.StakeService)(nil)

// StakeHandler serves stake prefill and balance lookups.
type StakeHandler struct {
	stakes StakeService
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(stakes StakeService, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{stakes: stakes, logger: logger}
}

// ComputeStake returns the stake for a feed row or an explicit opportunity.
// POST /api/stake
func (h *StakeHandler) ComputeStake(w http.ResponseWriter, r *http.Request) {
	var req service.StakeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.stakes.Stake(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to compute stake")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GetBalance returns a bookmaker balance, or the fallback bankroll.
// GET /api/balances/{bookmaker}
func (h *StakeHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.PathValue("bookmaker"))
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing bookmaker")
		return
	}
	writeJSON(w, http.StatusOK, h.stakes.Balance(r.Context(), key))
}
