package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/salesai-autopilot/internal/connectors"
	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"

	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper — предохранительная обвязка одного исполнителя:
// rate limiter + circuit breaker + ретраи с уважением к ThrottleError.
// У каждой capability своя обвязка: выбитый предохранитель мессенджера
// не должен глушить обогащение.
type ReliabilityWrapper struct {
	name    string
	next    connectors.ExecutionProvider
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewReliabilityWrapper(name string, next connectors.ExecutionProvider, cfg infra.GovernorConfig, metrics *Metrics) *ReliabilityWrapper {
	// Дефолты, если конфиг не заполнен
	maxRequests := cfg.CBMaxRequests
	if maxRequests <= 0 {
		maxRequests = 3
	}
	interval := cfg.CBInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	timeout := cfg.CBTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(maxRequests),
		Interval:    interval,
		Timeout:     timeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if metrics != nil {
				metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
			}
		},
	})

	// Настройка лимитера (например, 100 запросов в секунду)
	limiter := rate.NewLimiter(rate.Limit(100), 20)

	return &ReliabilityWrapper{
		name:    name,
		next:    next,
		cb:      cb,
		limiter: limiter,
	}
}

func (w *ReliabilityWrapper) Call(ctx context.Context, kind domain.ActionKind, payload []byte) (res []byte, err error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var finalData []byte

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если исполнитель вернул ThrottleError (считал Retry-After у внешней системы)
				var tErr *connectors.ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
			// Отказ по существу ретраить бессмысленно
			retry.RetryIf(func(err error) bool {
				var xErr *connectors.ExecuteError
				return !errors.As(err, &xErr)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()

			var callErr error
			finalData, callErr = w.next.Call(tCtx, kind, payload)
			return callErr
		})

		return finalData, retryErr
	})

	if err != nil {
		return nil, err
	}

	return cbResult.([]byte), nil
}
