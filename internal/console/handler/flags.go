package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/salesai-autopilot/internal/console/service"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra/auth"
)

// FlagsHandler — рубильники контура. Каждая мутация обязана нести
// reason, автор берется из токена: анонимных переключений не бывает.
type FlagsHandler struct {
	service *service.FlagsService
}

func NewFlagsHandler(s *service.FlagsService) *FlagsHandler {
	return &FlagsHandler{service: s}
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

type toggleRequest struct {
	On     bool   `json:"on"`
	Reason string `json:"reason"`
}

type levelRequest struct {
	Level  int    `json:"level"`
	Reason string `json:"reason"`
}

type limitsRequest struct {
	MaxActionsPerHour     int    `json:"max_actions_per_hour"`
	MaxErrorsPerHour      int    `json:"max_errors_per_hour"`
	MaxEscalationsPerHour int    `json:"max_escalations_per_hour"`
	Reason                string `json:"reason"`
}

type capabilityRequest struct {
	Open   bool   `json:"open"`
	Reason string `json:"reason"`
}

// Get возвращает текущее состояние флагов.
// GET /v1/autonomy
func (h *FlagsHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Current(r.Context()))
}

// Enable включает главный рубильник. POST /v1/autonomy/enable
func (h *FlagsHandler) Enable(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor, reason string) (domain.AutonomyFlags, error) {
		return h.service.Enable(r.Context(), actor, reason)
	})
}

// Disable выключает главный рубильник. POST /v1/autonomy/disable
func (h *FlagsHandler) Disable(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor, reason string) (domain.AutonomyFlags, error) {
		return h.service.Disable(r.Context(), actor, reason)
	})
}

// Kill — аварийный стоп поверх остальных флагов. POST /v1/autonomy/kill
func (h *FlagsHandler) Kill(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor, reason string) (domain.AutonomyFlags, error) {
		return h.service.Kill(r.Context(), actor, reason)
	})
}

// Restore снимает kill-switch. POST /v1/autonomy/restore
func (h *FlagsHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(actor, reason string) (domain.AutonomyFlags, error) {
		return h.service.ClearKill(r.Context(), actor, reason)
	})
}

// mutate — общий каркас для мутаций, где в теле только reason
func (h *FlagsHandler) mutate(w http.ResponseWriter, r *http.Request, op func(actor, reason string) (domain.AutonomyFlags, error)) {
	var req reasonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	flags, err := op(auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// SetActive запускает/останавливает подсистему (не трогая Enabled).
// POST /v1/autonomy/active
func (h *FlagsHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.SetActive)
}

// SetDryRun — прогон без побочных эффектов. POST /v1/autonomy/dry-run
func (h *FlagsHandler) SetDryRun(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.SetDryRun)
}

// SetConfirmation — каждое действие ждет человека. POST /v1/autonomy/confirmation
func (h *FlagsHandler) SetConfirmation(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.service.SetRequireConfirmation)
}

func (h *FlagsHandler) toggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, on bool, actor, reason string) (domain.AutonomyFlags, error)) {
	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	flags, err := op(r.Context(), req.On, auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// SetLevel задает уровень автономии 0..3. POST /v1/autonomy/level
func (h *FlagsHandler) SetLevel(w http.ResponseWriter, r *http.Request) {
	var req levelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}
	if req.Level < domain.LevelManual || req.Level > domain.LevelAutonomous {
		http.Error(w, "level out of range [0..3]", http.StatusBadRequest)
		return
	}

	flags, err := h.service.SetLevel(r.Context(), req.Level, auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// SetLimits — глобальный бюджет и пороги самоостановки. POST /v1/autonomy/limits
func (h *FlagsHandler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var req limitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}
	if req.MaxActionsPerHour < 0 || req.MaxErrorsPerHour < 0 || req.MaxEscalationsPerHour < 0 {
		http.Error(w, "limits must be non-negative", http.StatusBadRequest)
		return
	}

	flags, err := h.service.SetHourlyLimits(r.Context(),
		req.MaxActionsPerHour, req.MaxErrorsPerHour, req.MaxEscalationsPerHour,
		auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, flags)
}

// AuditTrail — журнал переключений. GET /v1/autonomy/audit?limit=
func (h *FlagsHandler) AuditTrail(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.AuditTrail(r.Context(), limit)
	if err != nil {
		http.Error(w, "Failed to fetch flag audit", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

// Capabilities — состояние всех гейтов. GET /v1/capabilities
func (h *FlagsHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Capabilities(r.Context()))
}

// SetCapability переключает один гейт. POST /v1/capabilities/{name}
func (h *FlagsHandler) SetCapability(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !knownCapability(name) {
		http.Error(w, "unknown capability", http.StatusBadRequest)
		return
	}

	var req capabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		http.Error(w, "reason is required", http.StatusBadRequest)
		return
	}

	err := h.service.SetCapability(r.Context(), name, req.Open, auth.UserIDFromContext(r.Context()), req.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, h.service.Capabilities(r.Context()))
}

func knownCapability(name string) bool {
	for _, c := range domain.AllCapabilities() {
		if c == name {
			return true
		}
	}
	return false
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
