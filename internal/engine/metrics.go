package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: полный цикл проверки кандидата (гейт + конвейер + эскалация)
	ValidationDuration *prometheus.HistogramVec

	// Latency: тик планировщика целиком, включая вызов исполнителя
	TickDuration prometheus.Histogram

	// Traffic: тики по исходу (completed, idle, paused, error)
	TicksTotal *prometheus.CounterVec

	// Traffic: записанные решения
	DecisionsTotal *prometheus.CounterVec

	// Распределение вердиктов governor (execute, hold, escalate, block)
	RecommendationsTotal *prometheus.CounterVec

	// Errors: провалы по именам валидаторов
	ValidatorFailures *prometheus.CounterVec

	// Errors: отказы исполнителей по capability
	DispatchErrors *prometheus.CounterVec

	// Saturation: состояние Circuit Breaker (0 - ок, 1 - выбило)
	CircuitBreakerState *prometheus.GaugeVec

	// Самоостановка сторожем (0/1)
	SelfPauseEngaged prometheus.Gauge

	// Audit: заполненность буфера событий (backpressure)
	EventBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		ValidationDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aag_validation_duration_seconds",
			Help:    "Histogram of full validation run latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"kind"}),

		TickDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "aag_tick_duration_seconds",
			Help:    "Histogram of scheduler tick latencies.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),

		TicksTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aag_ticks_total",
			Help: "Total number of scheduler ticks by status.",
		}, []string{"status"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aag_decisions_total",
			Help: "Total number of recorded decisions.",
		}, []string{"agent", "kind", "outcome"}),

		RecommendationsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aag_recommendations_total",
			Help: "Governor verdicts by kind and recommendation.",
		}, []string{"kind", "recommendation"}),

		ValidatorFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aag_validator_failures_total",
			Help: "Validator failures by validator name.",
		}, []string{"validator"}),

		DispatchErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "aag_dispatch_errors_total",
			Help: "Executor dispatch failures by capability.",
		}, []string{"capability"}),

		CircuitBreakerState: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "aag_circuit_breaker_state",
			Help: "Current state of the executor circuit breaker (0=closed, 1=open).",
		}, []string{"executor"}),

		SelfPauseEngaged: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "aag_self_pause_engaged",
			Help: "Whether the watchdog has self-paused the circuit (0/1).",
		}),

		EventBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "aag_event_buffer_utilization",
			Help: "Current fill ratio of the evaluation event buffer.",
		}),
	}
}

// Хелперы под интерфейсы потребителей (validation.MetricsSink,
// watchdog.MetricsSink, scheduler.MetricsSink): пакеты контура не должны
// знать про prometheus.

func (m *Metrics) ObserveValidation(kind string, seconds float64) {
	m.ValidationDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *Metrics) IncValidatorFailure(validator string) {
	m.ValidatorFailures.WithLabelValues(validator).Inc()
}

func (m *Metrics) IncRecommendation(kind, recommendation string) {
	m.RecommendationsTotal.WithLabelValues(kind, recommendation).Inc()
}

func (m *Metrics) ObserveTick(seconds float64) {
	m.TickDuration.Observe(seconds)
}

func (m *Metrics) IncTick(status string) {
	m.TicksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncDecision(agent, kind, outcome string) {
	m.DecisionsTotal.WithLabelValues(agent, kind, outcome).Inc()
}

func (m *Metrics) IncDispatchError(capability string) {
	m.DispatchErrors.WithLabelValues(capability).Inc()
}

func (m *Metrics) SetSelfPause(engaged bool) {
	if engaged {
		m.SelfPauseEngaged.Set(1)
		return
	}
	m.SelfPauseEngaged.Set(0)
}

func (m *Metrics) SetBreakerOpen(executor string, open bool) {
	v := 0.0
	if open {
		v = 1.0
	}
	m.CircuitBreakerState.WithLabelValues(executor).Set(v)
}

func (m *Metrics) SetEventBufferFill(ratio float64) {
	m.EventBufferFill.Set(ratio)
}
