package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// DashboardService Описываем, что нам нужно от сервиса
type DashboardService interface {
	Dashboard(ctx context.Context) (*domain.UnifiedDashboard, error)
	GlobalStats(ctx context.Context) (*domain.GlobalStats, error)
}

type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

// Get — сводка главного экрана: темп, вето, инциденты, latency.
// GET /v1/dashboard
func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	dash, err := h.service.Dashboard(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dash)
}

// GetStats — агрегаты за сутки для графиков.
// GET /v1/dashboard/stats
func (h *DashboardHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GlobalStats(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch stats", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
