package handlers

import (
	"context"
	"net/http"

	"github.com/idkrafsan/BetTracker/models"
	"github.com/idkrafsan/BetTracker/service"
)

// DashboardHandler serves computed dashboards
type DashboardHandler struct {
	dashboard service.DashboardProvider
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dashboard service.DashboardProvider) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// GetDashboard returns statistics for ?period=1d|1w|1m|all (default all)
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	period, err := models.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	dashboard, err := h.dashboard.Current(ctx, period)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dashboard)
}
