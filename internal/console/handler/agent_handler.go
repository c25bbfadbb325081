package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// AgentController описывает, что нам нужно от сервиса
type AgentController interface {
	ListAgents(ctx context.Context) ([]domain.AgentState, error)
	PauseAgent(ctx context.Context, name string) error
	ResumeAgent(ctx context.Context, name string) error
	SetAllPaused(ctx context.Context, paused bool) error
}

type AgentHandler struct {
	service AgentController
}

func NewAgentHandler(s AgentController) *AgentHandler {
	return &AgentHandler{service: s}
}

// List — таблица агентов конвейера. GET /v1/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.ListAgents(r.Context())
	if err != nil {
		http.Error(w, "Failed to fetch agents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}

// Pause снимает агента с ротации. POST /v1/agents/{name}/pause
func (h *AgentHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPause(w, r, true)
}

// Resume возвращает агента в ротацию. POST /v1/agents/{name}/resume
func (h *AgentHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPause(w, r, false)
}

func (h *AgentHandler) setPause(w http.ResponseWriter, r *http.Request, paused bool) {
	name := chi.URLParam(r, "name")
	if !knownAgent(name) {
		// Список агентов закрытый: незнакомое имя — это 404, а не ошибка БД
		http.Error(w, "unknown agent", http.StatusNotFound)
		return
	}

	var err error
	if paused {
		err = h.service.PauseAgent(r.Context(), name)
	} else {
		err = h.service.ResumeAgent(r.Context(), name)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// PauseAll останавливает весь конвейер. POST /v1/agents/pause-all
func (h *AgentHandler) PauseAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, true)
}

// ResumeAll возвращает весь конвейер в работу. POST /v1/agents/resume-all
func (h *AgentHandler) ResumeAll(w http.ResponseWriter, r *http.Request) {
	h.setAll(w, r, false)
}

func (h *AgentHandler) setAll(w http.ResponseWriter, r *http.Request, paused bool) {
	if err := h.service.SetAllPaused(r.Context(), paused); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func knownAgent(name string) bool {
	for _, a := range domain.AllAgents() {
		if a == name {
			return true
		}
	}
	return false
}
