package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// MockExecutor — заглушка исполнителя для локальной разработки и демо.
// Через поле payload["simulate"] можно заказать сценарий отказа:
// "fail" — ошибка исполнителя, "throttle" — ThrottleError (проверка
// ретраев ReliabilityWrapper).
type MockExecutor struct{}

func (c *MockExecutor) Call(ctx context.Context, kind domain.ActionKind, payload []byte) ([]byte, error) {
	// Имитируем задержку 50-300мс
	latency := time.Duration(50+rand.Intn(250)) * time.Millisecond

	select {
	case <-time.After(latency):
		// Имитация работы
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var m map[string]interface{}
	_ = json.Unmarshal(payload, &m)

	switch m["simulate"] {
	case "fail":
		return nil, fmt.Errorf("executor internal error")
	case "throttle":
		return nil, &ThrottleError{
			RetryAfter: 200 * time.Millisecond,
			Cause:      fmt.Errorf("simulated rate limit"),
		}
	}

	switch kind {
	case domain.KindMessageSend:
		return []byte(`{"status": "sent", "channel": "email"}`), nil
	case domain.KindContractSend:
		return []byte(`{"status": "sent", "envelope_id": "ENV-771", "channel": "e-sign"}`), nil
	case domain.KindLeadEnrich:
		// Имитируем обогащение карточки
		return []byte(`{"status": "enriched", "score": 0.72, "fields_filled": 4}`), nil
	case domain.KindLeadReengage:
		return []byte(`{"status": "sent", "channel": "email", "template": "reengage-30d"}`), nil
	case domain.KindDataRequest:
		return []byte(`{"status": "queued", "provider": "clearbit"}`), nil
	default:
		return nil, fmt.Errorf("kind %s not supported by executor", kind)
	}
}
