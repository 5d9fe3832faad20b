package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
)

const requestTimeout = 10 * time.Second

// BetHandler handles bet requests
type BetHandler struct {
	bets service.BetService
}

// NewBetHandler creates a new bet handler
func NewBetHandler(bets service.BetService) *BetHandler {
	return &BetHandler{bets: bets}
}

// ListBets returns every bet, soft deleted ones included
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bets, err := h.bets.ListBets(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if bets == nil {
		bets = []*models.Bet{}
	}

	respondJSON(w, http.StatusOK, bets)
}

// CreateBet stores a bet and settles it against the balance
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var input models.BetInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bet, err := h.bets.CreateBet(ctx, input)
	respondBetWrite(w, http.StatusCreated, betOrNil(bet), err)
}

// GetBet returns a single bet
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bet, err := h.bets.GetBet(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, bet)
}

// EditBet replaces a bet and settles the difference against the balance
func (h *BetHandler) EditBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var input models.BetInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	bet, err := h.bets.EditBet(ctx, chi.URLParam(r, "id"), input)
	respondBetWrite(w, http.StatusOK, betOrNil(bet), err)
}

// DeleteBet removes a bet row. The balance is left as it is.
func (h *BetHandler) DeleteBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.bets.DeleteBet(ctx, chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SoftDeleteBet marks a bet deleted. The balance is left as it is.
func (h *BetHandler) SoftDeleteBet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	bet, err := h.bets.SoftDeleteBet(ctx, chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, bet)
}

// betOrNil keeps a nil *Bet from becoming a non-nil interface
func betOrNil(bet *models.Bet) any {
	if bet == nil {
		return nil
	}
	return bet
}
