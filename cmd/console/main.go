package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/console/handler"
	"github.com/xela07ax/salesai-autopilot/internal/console/server"
	"github.com/xela07ax/salesai-autopilot/internal/console/service"
	"github.com/xela07ax/salesai-autopilot/internal/flags"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"github.com/xela07ax/salesai-autopilot/internal/infra/auth"
	"github.com/xela07ax/salesai-autopilot/internal/policy"
	"github.com/xela07ax/salesai-autopilot/internal/repository/postgres"
	"github.com/xela07ax/salesai-autopilot/internal/scheduler"
	"github.com/xela07ax/salesai-autopilot/internal/watchdog"
)

func main() {
	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инициализация ресурсов
	pool, err := postgres.NewPool(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewGovernorRepo(pool)
	// Проверяем соединение с таймаутом
	pingCtx, pingCancel := context.WithTimeout(appCtx, 5*time.Second)
	if err := repo.Ping(pingCtx); err != nil {
		logger.Fatal("database unreachable", zap.Error(err))
	}
	pingCancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	eventRepo := postgres.NewEventRepo(pool)

	// 3. Ключи: публичный — проверка токенов, закрытый — их выпуск
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("bad auth public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)

	privKey, err := auth.ParseRSAPrivateKey(cfg.Auth.PrivateKey)
	if err != nil {
		logger.Fatal("bad auth private key (console issues tokens, key is mandatory)", zap.Error(err))
	}

	// 4. Control Plane: флаги и гейты. Консоль слушает сигналы, чтобы
	// Snapshot не отставал от переключений с других инстансов
	store := flags.NewStore(rdb, repo, logger)
	gates := flags.NewGateManager(rdb, logger)
	if err := gates.Init(appCtx); err != nil {
		logger.Fatal("failed to init capability gates", zap.Error(err))
	}
	go gates.StartListener(appCtx)

	thresholds := policy.NewThresholdService(repo, logger)

	// Сторож в консоли работает только на чтение (Check): саму паузу
	// исполняет движок, здесь вердикт показывается оператору
	monitor := watchdog.NewMonitor(repo, eventRepo, store, rdb, nil, logger)
	detectors := scheduler.NewDetectorSet(repo, logger)

	// 5. Инициализация слоев (Dependency Injection)
	authService := service.NewAuthService(repo, privKey, cfg.Auth.TokenTTL)
	flagsService := service.NewFlagsService(store, gates, repo, logger)
	thresholdService := service.NewThresholdService(repo, thresholds, logger)
	agentService := service.NewAgentService(repo, rdb, logger)
	loopService := service.NewLoopService(repo, detectors, monitor, rdb, logger)
	approvalService := service.NewApprovalService(repo, rdb, logger)

	consoleSrv := server.NewConsoleServer(
		cfg,
		logger,
		validator,
		handler.NewAuthHandler(authService),
		handler.NewFlagsHandler(flagsService),
		handler.NewThresholdHandler(thresholdService),
		handler.NewAgentHandler(agentService),
		handler.NewLoopHandler(loopService),
		handler.NewDecisionHandler(loopService),
		handler.NewApprovalHandler(approvalService),
		handler.NewDashboardHandler(agentService),
	)

	// 6. Запуск сервера
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      consoleSrv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("console API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("console listen failed", zap.Error(err))
		}
	}()

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("console API stopping...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("console shutdown failed", zap.Error(err))
	}
	logger.Info("console API exited properly")
}
