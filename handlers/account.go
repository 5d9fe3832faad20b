package handlers

import (
	"context"
	"net/http"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
)

// AccountHandler handles the singleton account
type AccountHandler struct {
	accounts service.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type usernameRequest struct {
	Username string `json:"username"`
}

// GetAccount returns the account, zero valued if it was never written
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	account, err := h.accounts.GetAccount(ctx)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) SetUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var req usernameRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	account, err := h.accounts.SetUsername(ctx, req.Username)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.accounts.Deposit)
}

func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.accounts.Withdraw)
}

func (h *AccountHandler) move(w http.ResponseWriter, r *http.Request, op func(context.Context, models.AmountInput) (*models.Account, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var input models.AmountInput
	if err := decodeJSON(r, &input); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	account, err := op(ctx, input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, account)
}

// BalanceHistory returns the latest balance movements, newest first
func (h *AccountHandler) BalanceHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	history, err := h.accounts.BalanceHistory(ctx, getIntParam(r, "limit", 0))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if history == nil {
		history = []*models.BalanceHistory{}
	}

	respondJSON(w, http.StatusOK, history)
}
