package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/idkrafsan/BetTracker/service"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Code    int          `json:"code"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// FieldError names one violated validation rule
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// BetWriteResponse is returned by bet create and edit. When the bet was stored
// but its balance change failed, SettlementApplied is false and PendingDelta
// holds the amount still owed to the account.
type BetWriteResponse struct {
	Bet               any              `json:"bet"`
	SettlementApplied bool             `json:"settlementApplied"`
	PendingDelta      *decimal.Decimal `json:"pendingDelta,omitempty"`
	Error             string           `json:"error,omitempty"`
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// HealthCheck answers 200 when the store responds and 503 otherwise
func HealthCheck(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Healthy(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "database unreachable", err)
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	respondErrorWithFields(w, status, message, nil, err)
}

func respondErrorWithFields(w http.ResponseWriter, status int, message string, fields []FieldError, err error) {
	if err != nil {
		entry := log.WithError(err).WithField("status", status)
		if status >= http.StatusInternalServerError {
			entry.Error(message)
		} else {
			entry.Debug(message)
		}
	}

	respondJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
		Fields:  fields,
	})
}

// respondServiceError maps service errors onto status codes
func respondServiceError(w http.ResponseWriter, err error) {
	var validationErrs service.ValidationErrors
	switch {
	case errors.As(err, &validationErrs):
		fields := make([]FieldError, len(validationErrs))
		for i, v := range validationErrs {
			fields[i] = FieldError{Field: v.Field, Rule: v.Rule}
		}
		respondErrorWithFields(w, http.StatusBadRequest, "validation failed", fields, err)
	case errors.Is(err, service.ErrNotFound):
		respondError(w, http.StatusNotFound, "bet not found", err)
	case errors.Is(err, service.ErrInsufficientBalance):
		respondError(w, http.StatusUnprocessableEntity, "insufficient balance", err)
	case errors.Is(err, service.ErrStoreUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store unavailable", err)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "request timed out", err)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// respondBetWrite answers a bet create or edit. A bet that was stored without
// its settlement is reported with 202 so the caller knows the write happened.
func respondBetWrite(w http.ResponseWriter, status int, bet any, err error) {
	if err == nil {
		respondJSON(w, status, BetWriteResponse{Bet: bet, SettlementApplied: true})
		return
	}

	var notApplied *service.SettlementNotAppliedError
	if errors.As(err, &notApplied) && bet != nil {
		delta := notApplied.Delta
		respondJSON(w, http.StatusAccepted, BetWriteResponse{
			Bet:               bet,
			SettlementApplied: false,
			PendingDelta:      &delta,
			Error:             notApplied.Error(),
		})
		return
	}

	respondServiceError(w, err)
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func getIntParam(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
