package watchdog

/*
Файл monitor.go — сторож контура (Circuit Watchdog).

Следит за скользящим часом: проваленные решения, эскалации, сработки
opt-out. Пробитый порог — контур глушится тем же путём, что и ручное
отключение админом (actor = "system:self-pause"), никакого отдельного
«системного» канала мутаций нет.

Порядок самоостановки строгий: сначала выключение + журнал (durable),
потом best-effort оповещение. Ошибка оповещения глотается — пауза уже
состоялась, откатывать её из-за недоступного Redis-канала нельзя.

Недоступность метрик — это не «пропустить проверку», это повод встать:
сторож, который не видит приборов, обязан остановить машину (Fail-Safe).
*/

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
)

// SelfPauseActor пишется в журнал флагов при автоматической остановке
const SelfPauseActor = "system:self-pause"

// DecisionMetrics — счётчики провалов и эскалаций из журнала решений
type DecisionMetrics interface {
	HourlyFailureMetrics(ctx context.Context) (failed int, escalated int, err error)
}

// OptOutCounter — сработки opt-out валидатора из журнала событий
type OptOutCounter interface {
	CountOptOutsLastHour(ctx context.Context) (int, error)
}

// FlagController — чтение порогов и рубильник (см. flags.Store)
type FlagController interface {
	Current(ctx context.Context) domain.AutonomyFlags
	Disable(ctx context.Context, actor, reason string) (domain.AutonomyFlags, error)
}

// MetricsSink — gauge «самоостановка включена» для Prometheus
type MetricsSink interface {
	SetSelfPause(engaged bool)
}

type Monitor struct {
	decisions DecisionMetrics
	events    OptOutCounter
	flags     FlagController
	rdb       *redis.Client
	metrics   MetricsSink
	logger    *zap.Logger
}

func NewMonitor(decisions DecisionMetrics, events OptOutCounter, flags FlagController, rdb *redis.Client, metrics MetricsSink, logger *zap.Logger) *Monitor {
	return &Monitor{
		decisions: decisions,
		events:    events,
		flags:     flags,
		rdb:       rdb,
		metrics:   metrics,
		logger:    logger.Named("watchdog"),
	}
}

// Check собирает снимок часа и выносит вердикт. Пороги ошибок и эскалаций
// читаются из флагов свежими (их крутит админ), порог opt-out вшит.
func (m *Monitor) Check(ctx context.Context) domain.PauseVerdict {
	f := m.flags.Current(ctx)

	failed, escalated, err := m.decisions.HourlyFailureMetrics(ctx)
	if err != nil {
		m.logger.Error("Метрики решений недоступны", zap.Error(err))
		return domain.PauseVerdict{ShouldPause: true, Reason: fmt.Sprintf("error checking metrics: %v", err)}
	}

	optOuts, err := m.events.CountOptOutsLastHour(ctx)
	if err != nil {
		m.logger.Error("Метрики opt-out недоступны", zap.Error(err))
		return domain.PauseVerdict{ShouldPause: true, Reason: fmt.Sprintf("error checking metrics: %v", err)}
	}

	metrics := domain.HealthMetrics{
		ErrorsLastHour:      failed,
		EscalationsLastHour: escalated,
		OptOutsLastHour:     optOuts,
	}
	verdict := domain.PauseVerdict{Metrics: metrics}

	switch {
	case failed > f.MaxErrorsPerHour:
		verdict.ShouldPause = true
		verdict.Reason = fmt.Sprintf("error rate too high: %d failed decisions in the last hour (threshold %d)",
			failed, f.MaxErrorsPerHour)
	case escalated > f.MaxEscalationsPerHour:
		verdict.ShouldPause = true
		verdict.Reason = fmt.Sprintf("escalation rate too high: %d escalations in the last hour (threshold %d)",
			escalated, f.MaxEscalationsPerHour)
	case optOuts >= domain.OptOutPauseThreshold:
		verdict.ShouldPause = true
		verdict.Reason = fmt.Sprintf("opt-out spike: %d opt-outs in the last hour (threshold %d)",
			optOuts, domain.OptOutPauseThreshold)
	}

	return verdict
}

// ExecuteSelfPause глушит контур. Порядок: выключение + журнал, затем
// оповещение. Ошибку оповещения глотаем.
func (m *Monitor) ExecuteSelfPause(ctx context.Context, reason string) error {
	if _, err := m.flags.Disable(ctx, SelfPauseActor, reason); err != nil {
		return fmt.Errorf("watchdog: disable failed: %w", err)
	}
	if m.metrics != nil {
		m.metrics.SetSelfPause(true)
	}
	m.logger.Warn("Контур остановлен сторожем", zap.String("reason", reason))

	if err := m.rdb.Publish(ctx, infra.RedisChanAlerts, "self-pause: "+reason).Err(); err != nil {
		m.logger.Warn("Оповещение о самоостановке не доставлено", zap.Error(err))
	}
	return nil
}

// Run — периодическая проверка до отмены контекста. Выключенный контур
// не проверяем: журнал флагов не должен пухнуть от повторных пауз.
func (m *Monitor) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	m.logger.Info("Сторож запущен", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Сторож остановлен")
			return
		case <-ticker.C:
			f := m.flags.Current(ctx)
			if !f.Enabled {
				continue
			}
			// Контур работает — прошлая самоостановка (если была) снята админом
			if m.metrics != nil {
				m.metrics.SetSelfPause(false)
			}
			verdict := m.Check(ctx)
			if !verdict.ShouldPause {
				continue
			}
			if err := m.ExecuteSelfPause(ctx, verdict.Reason); err != nil {
				m.logger.Error("Самоостановка не удалась", zap.Error(err))
			}
		}
	}
}
