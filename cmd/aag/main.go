package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/xela07ax/salesai-autopilot/internal/audit"
	"github.com/xela07ax/salesai-autopilot/internal/connectors"
	"github.com/xela07ax/salesai-autopilot/internal/engine"
	"github.com/xela07ax/salesai-autopilot/internal/flags"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
	"github.com/xela07ax/salesai-autopilot/internal/infra/auth"
	"github.com/xela07ax/salesai-autopilot/internal/policy"
	"github.com/xela07ax/salesai-autopilot/internal/repository/postgres"
	"github.com/xela07ax/salesai-autopilot/internal/scheduler"
	"github.com/xela07ax/salesai-autopilot/internal/validation"
	"github.com/xela07ax/salesai-autopilot/internal/watchdog"

	pb "github.com/xela07ax/salesai-autopilot/pkg/api/autonomy/v1"
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

	// Контекст для управления жизненным циклом фоновых горутин.
	// При завершении main() или срабатывании SIGTERM, cancel() остановит слушателей
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Инфраструктура и ресурсы
	pool, err := postgres.NewPool(appCtx, cfg.Database)
	if err != nil {
		logger.Fatal("postgres pool init failed", zap.Error(err))
	}
	defer pool.Close()

	repo := postgres.NewGovernorRepo(pool)
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

	// 3. Control Plane (флаги и гейты)
	store := flags.NewStore(rdb, repo, logger)
	if err := store.EnsureDefaults(appCtx); err != nil {
		logger.Warn("flags warm-up failed", zap.Error(err))
	}

	gates := flags.NewGateManager(rdb, logger)
	if err := gates.EnsureDefaults(appCtx); err != nil {
		logger.Warn("gate warm-up failed", zap.Error(err))
	}
	if err := gates.Init(appCtx); err != nil {
		logger.Fatal("failed to init capability gates", zap.Error(err))
	}
	go gates.StartListener(appCtx)

	// 4. Телеметрия: асинхронный журнал событий + Prometheus
	recorder := audit.NewRecorder(eventRepo, logger, cfg.Governor.EventBufferSize, cfg.Governor.EventFlushInterval)
	recorder.Start()

	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := fmt.Sprintf(":%d", cfg.Server.MetricsPort)
		logger.Info("metrics endpoint started", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	// Заполненность буфера событий — в gauge, чтобы Load Shedding
	// был виден до того, как начнутся потери
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				metrics.SetEventBufferFill(recorder.Utilization())
			}
		}
	}()

	// 5. Governance (gate -> конвейер валидаторов -> эскалация -> скоринг)
	thresholds := policy.NewThresholdService(repo, logger)
	gate := policy.NewGate(store, thresholds, logger)

	loc := time.Local
	if cfg.Governor.SendWindowTZ != "" {
		loc, err = time.LoadLocation(cfg.Governor.SendWindowTZ)
		if err != nil {
			logger.Fatal("bad send_window_tz", zap.String("tz", cfg.Governor.SendWindowTZ), zap.Error(err))
		}
	}

	pipeline := validation.NewPipeline(repo, repo, gates, loc, logger)
	escalator := validation.NewEscalator(repo, logger)
	governor := validation.NewGovernor(gate, thresholds, store, pipeline, escalator, recorder, metrics, logger)

	// 6. Execution Layer (gRPC исполнители + Reliability)
	registry := connectors.NewRegistry()
	executorAddrs := map[string]string{
		"messaging":  cfg.Executors.MessagingAddr,
		"contracts":  cfg.Executors.ContractsAddr,
		"enrichment": cfg.Executors.EnrichmentAddr,
	}
	var conns []*grpc.ClientConn
	for capability, addr := range executorAddrs {
		var provider connectors.ExecutionProvider
		if addr == "" {
			// Пустой адрес = заглушка: удобно для локалки и стейджа
			provider = &connectors.MockExecutor{}
			logger.Warn("executor address is empty, using mock", zap.String("capability", capability))
		} else {
			conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
			if err != nil {
				logger.Fatal("failed to connect executor",
					zap.String("capability", capability), zap.String("addr", addr), zap.Error(err))
			}
			conns = append(conns, conn)
			provider = connectors.NewGRPCAdapter(pb.NewExecutorServiceClient(conn), cfg.Executors.CallTimeout)
			logger.Info("executor connected", zap.String("capability", capability), zap.String("addr", addr))
		}
		// Оборачиваем в Reliability (Retries, Circuit Breaker, Rate Limiter)
		registry.Register(capability, engine.NewReliabilityWrapper(capability, provider, cfg.Governor, metrics))
	}
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	// 7. Шедулер и сторож
	detectors := scheduler.NewDetectorSet(repo, logger)
	loop := scheduler.NewLoop(repo, repo, repo, repo, detectors, governor, registry, rdb, metrics, logger)
	go loop.Run(appCtx, cfg.Scheduler.TickInterval)
	go loop.ListenKicks(appCtx)

	monitor := watchdog.NewMonitor(repo, eventRepo, store, rdb, metrics, logger)
	go monitor.Run(appCtx, cfg.Scheduler.WatchInterval)

	// 8. gRPC сервер машинного API (CanExecute / Validate)
	pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
	if err != nil {
		logger.Fatal("bad auth public key", zap.Error(err))
	}
	validator := auth.NewBaseValidator(pubKey)

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(engine.UnaryAuthInterceptor(validator)))
	pb.RegisterGovernorServiceServer(grpcSrv, engine.NewGovernorGRPCServer(gate, governor, logger))

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.GRPCPort)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal("failed to listen gRPC", zap.String("addr", addr), zap.Error(err))
		}
		logger.Info("governor gRPC server started", zap.String("addr", addr))
		if err := grpcSrv.Serve(lis); err != nil {
			logger.Fatal("gRPC serve failed", zap.Error(err))
		}
	}()

	logger.Info("autonomy engine started",
		zap.Duration("tick_interval", cfg.Scheduler.TickInterval),
		zap.Duration("watch_interval", cfg.Scheduler.WatchInterval),
	)

	// 9. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("autonomy engine stopping...")
	cancel() // Останавливаем тики, сторожа и слушателей

	grpcSrv.GracefulStop()
	recorder.Stop() // Финальный слив буфера событий в Postgres

	logger.Info("autonomy engine exited properly")
}
