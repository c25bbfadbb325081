package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/salesai-autopilot/internal/console/handler"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"github.com/xela07ax/salesai-autopilot/internal/infra/auth"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger
	cfg    *infra.Config

	// Проверка RS256-токенов для защищенного периметра
	validator auth.TokenValidator

	// Обработчики бизнес-доменов
	authHandler      *handler.AuthHandler      // /auth/token
	flagsHandler     *handler.FlagsHandler     // /v1/autonomy, /v1/capabilities
	thresholdHandler *handler.ThresholdHandler // /v1/thresholds
	agentHandler     *handler.AgentHandler     // /v1/agents
	loopHandler      *handler.LoopHandler      // /v1/loop, /v1/watchdog
	decisionHandler  *handler.DecisionHandler  // /v1/decisions
	approvalHandler  *handler.ApprovalHandler  // /v1/approvals (HITL)
	dashHandler      *handler.DashboardHandler // /v1/dashboard
}

// NewConsoleServer инициализирует сервер админки со всеми зависимостями
func NewConsoleServer(
	cfg *infra.Config,
	logger *zap.Logger,
	validator auth.TokenValidator,
	authH *handler.AuthHandler,
	flagsH *handler.FlagsHandler,
	thresholdH *handler.ThresholdHandler,
	agentH *handler.AgentHandler,
	loopH *handler.LoopHandler,
	decisionH *handler.DecisionHandler,
	approvalH *handler.ApprovalHandler,
	dashH *handler.DashboardHandler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:           chi.NewRouter(),
		logger:           logger.Named("console-api"),
		cfg:              cfg,
		validator:        validator,
		authHandler:      authH,
		flagsHandler:     flagsH,
		thresholdHandler: thresholdH,
		agentHandler:     agentH,
		loopHandler:      loopH,
		decisionHandler:  decisionH,
		approvalHandler:  approvalH,
		dashHandler:      dashH,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- 2. ПУБЛИЧНЫЕ РОУТЫ (Открыты для всех) ---
	r.Group(func(r chi.Router) {
		// Логин должен быть доступен без токена
		r.Post("/auth/token", s.authHandler.Login)

		// Healthcheck для мониторинга
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})

	// --- 3. ЗАЩИЩЕННЫЙ ПЕРИМЕТР (Требуют RS256 токен) ---
	r.Group(func(r chi.Router) {
		// Подключаем универсальный Middleware только для этой группы
		r.Use(auth.NewMiddleware(s.validator, s.logger))

		read := auth.RequireScope(domain.ScopeAutonomyRead)
		write := auth.RequireScope(domain.ScopeAutonomyWrite)

		// Dashboard & Stats
		r.With(read).Get("/v1/dashboard", s.dashHandler.Get)
		r.With(read).Get("/v1/dashboard/stats", s.dashHandler.GetStats)

		// Рубильники контура (Control Plane)
		r.Route("/v1/autonomy", func(r chi.Router) {
			r.With(read).Get("/", s.flagsHandler.Get)
			r.With(read).Get("/audit", s.flagsHandler.AuditTrail)

			r.Group(func(r chi.Router) {
				r.Use(write)
				r.Post("/enable", s.flagsHandler.Enable)
				r.Post("/disable", s.flagsHandler.Disable)
				r.Post("/kill", s.flagsHandler.Kill)          // Аварийный стоп
				r.Post("/restore", s.flagsHandler.Restore)    // Снятие kill-switch
				r.Post("/active", s.flagsHandler.SetActive)   // Запуск/останов подсистемы
				r.Post("/dry-run", s.flagsHandler.SetDryRun)
				r.Post("/confirmation", s.flagsHandler.SetConfirmation)
				r.Post("/level", s.flagsHandler.SetLevel)
				r.Post("/limits", s.flagsHandler.SetLimits)
			})
		})

		// Capability-гейты (группы действий)
		r.Route("/v1/capabilities", func(r chi.Router) {
			r.With(read).Get("/", s.flagsHandler.Capabilities)
			r.With(write).Post("/{name}", s.flagsHandler.SetCapability)
		})

		// Пороги валидаторов по видам действий
		r.Route("/v1/thresholds", func(r chi.Router) {
			r.With(read).Get("/", s.thresholdHandler.List)
			r.Route("/{kind}", func(r chi.Router) {
				r.With(read).Get("/", s.thresholdHandler.Get)
				r.With(write).Put("/", s.thresholdHandler.Upsert)
				r.With(write).Delete("/", s.thresholdHandler.Delete)
			})
		})

		// Управление агентами конвейера (Pause/Resume)
		r.Route("/v1/agents", func(r chi.Router) {
			r.With(read).Get("/", s.agentHandler.List)
			r.With(write).Post("/pause-all", s.agentHandler.PauseAll)
			r.With(write).Post("/resume-all", s.agentHandler.ResumeAll)
			r.Route("/{name}", func(r chi.Router) {
				r.With(write).Post("/pause", s.agentHandler.Pause)
				r.With(write).Post("/resume", s.agentHandler.Resume)
			})
		})

		// Шедулер: снимок конвейера и ручной тик
		r.With(read).Get("/v1/loop/status", s.loopHandler.Status)
		r.With(write).Post("/v1/loop/tick", s.loopHandler.Kick)

		// Сторож: положение относительно порогов самоостановки
		r.With(read).Get("/v1/watchdog", s.loopHandler.Watchdog)

		// Журнал решений (Observability)
		r.Route("/v1/decisions", func(r chi.Router) {
			r.Use(read)
			r.Get("/", s.decisionHandler.List)
			r.Get("/lead/{leadID}", s.decisionHandler.ForLead)
		})

		// Human-in-the-loop (Approvals)
		r.Route("/v1/approvals", func(r chi.Router) {
			r.Use(auth.RequireScope(domain.ScopeApprovals))
			r.Get("/", s.approvalHandler.List) // Очередь запросов на разбор
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.approvalHandler.GetDetails)
				r.Post("/decide", s.approvalHandler.Decide) // Approve/Reject + алерт
			})
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
