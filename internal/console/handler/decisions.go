package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// DecisionLog описывает, что нам нужно от сервиса
type DecisionLog interface {
	Decisions(ctx context.Context, limit int) ([]domain.Decision, error)
	LeadDecisions(ctx context.Context, leadID string, limit int) ([]domain.Decision, error)
}

type DecisionHandler struct {
	service DecisionLog
}

func NewDecisionHandler(s DecisionLog) *DecisionHandler {
	return &DecisionHandler{service: s}
}

// List — журнал решений, свежие сверху.
// GET /v1/decisions?limit=...
func (h *DecisionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	decisions, err := h.service.Decisions(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to fetch decisions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}

// ForLead — история решений по одному лиду (разбор инцидентов).
// GET /v1/decisions/lead/{leadID}?limit=...
func (h *DecisionHandler) ForLead(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadID")
	if leadID == "" {
		http.Error(w, "leadID is required", http.StatusBadRequest)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	decisions, err := h.service.LeadDecisions(r.Context(), leadID, limit)
	if err != nil {
		http.Error(w, "Failed to fetch lead decisions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(decisions)
}
