package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// LoopController описывает, что нам нужно от сервиса
type LoopController interface {
	Status(ctx context.Context) (*domain.LoopStatus, error)
	KickTick(ctx context.Context) error
	WatchdogVerdict(ctx context.Context) domain.PauseVerdict
}

type LoopHandler struct {
	service LoopController
}

func NewLoopHandler(s LoopController) *LoopHandler {
	return &LoopHandler{service: s}
}

// Status — снимок конвейера: агенты, цели, решения, очереди детекторов.
// GET /v1/loop/status
func (h *LoopHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.Status(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch loop status", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// Kick просит движок прогнать тик вне расписания. Сам прогон асинхронный,
// поэтому 202: результат появится в журнале решений.
// POST /v1/loop/tick
func (h *LoopHandler) Kick(w http.ResponseWriter, r *http.Request) {
	if err := h.service.KickTick(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "tick requested"})
}

// Watchdog — текущее положение контура относительно порогов самоостановки.
// GET /v1/watchdog
func (h *LoopHandler) Watchdog(w http.ResponseWriter, r *http.Request) {
	verdict := h.service.WatchdogVerdict(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(verdict)
}
