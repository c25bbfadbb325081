package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/salesai-autopilot/internal/console/service"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type ThresholdHandler struct {
	service *service.ThresholdService
}

func NewThresholdHandler(s *service.ThresholdService) *ThresholdHandler {
	return &ThresholdHandler{service: s}
}

// List возвращает действующие пороги всех видов действий.
// GET /v1/thresholds
func (h *ThresholdHandler) List(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.ListEffective(r.Context()))
}

// Get возвращает действующий порог одного вида.
// GET /v1/thresholds/{kind}
func (h *ThresholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseActionKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.GetEffective(r.Context(), kind))
}

// Upsert сохраняет оверрайд порогов (вид действия берется из URL).
// PUT /v1/thresholds/{kind}
func (h *ThresholdHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseActionKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var t domain.ActionThreshold
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// URL главнее тела: нельзя положить пороги одного вида под ключ другого
	t.Kind = kind

	if err := service.ValidateThreshold(t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.service.Upsert(r.Context(), t); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Отдаем то, что теперь видит Governor (после нормализации сервисом)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.service.GetEffective(r.Context(), kind))
}

// Delete снимает оверрайд, вид возвращается к вшитым дефолтам.
// DELETE /v1/thresholds/{kind}
func (h *ThresholdHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseActionKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.service.Delete(r.Context(), kind); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
