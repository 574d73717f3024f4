package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
	"github.com/alanyoungcy/oddsdesk/internal/service"
)

// BetService places, lists and settles bets.
type BetService interface {
	Place(ctx context.Context, req domain.BetRequest) (service.PlaceResult, error)
	List(ctx context.Context, filter domain.BetFilter) ([]domain.Bet, error)
	Settle(ctx context.Context, id int64, status domain.BetStatus, payout *float64) (domain.Bet, error)
}

var _ BetService = (*service.BetService)(nil)

// BetHandler serves the bet endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{bets: bets, logger: logger}
}

// PlaceBet submits a bet and returns it with the re-rendered feed.
// POST /api/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req domain.BetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := h.bets.Place(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to place bet")
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListBets returns journaled bets, newest first.
// GET /api/bets?preset_id=1&status=open&limit=50&offset=0
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.BetFilter{ListOpts: parseListOpts(r)}

	if v := q.Get("preset_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			writeError(w, http.StatusBadRequest, "invalid preset_id")
			return
		}
		filter.PresetID = id
	}
	if v := q.Get("status"); v != "" {
		filter.Status = domain.BetStatus(v)
	}

	bets, err := h.bets.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list bets")
		return
	}
	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

type settleRequest struct {
	Status domain.BetStatus `json:"status"`
	Payout *float64         `json:"payout,omitempty"`
}

// SettleBet records a bet result.
// PATCH /api/bets/{id}
func (h *BetHandler) SettleBet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}
	var req settleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	bet, err := h.bets.Settle(r.Context(), id, req.Status, req.Payout)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to settle bet")
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
