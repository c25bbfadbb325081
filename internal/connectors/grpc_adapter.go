package connectors

import (
	"context"
	"fmt"
	"time"

	"encoding/json"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	pb "github.com/xela07ax/salesai-autopilot/pkg/api/autonomy/v1"
)

// Схема конверта ExecutorService (google.protobuf.Struct в обе стороны):
//
//	запрос:  {"kind": string, "payload": object, "metadata": object}
//	ответ:   {"status": "ok"|"throttled"|<код отказа>,
//	          "error": string, "retry_after_ms": number, "result": object}
type GRPCAdapter struct {
	client  pb.ExecutorServiceClient
	timeout time.Duration
}

// NewGRPCAdapter создает экземпляр адаптера. Нулевой timeout — 15 секунд.
func NewGRPCAdapter(client pb.ExecutorServiceClient, timeout time.Duration) *GRPCAdapter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &GRPCAdapter{
		client:  client,
		timeout: timeout,
	}
}

// Call реализует интерфейс ExecutionProvider
func (a *GRPCAdapter) Call(ctx context.Context, kind domain.ActionKind, payload []byte) ([]byte, error) {
	// 1. Конвертируем JSON-байты в Protobuf Struct
	var m map[string]interface{}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	envelope, err := structpb.NewStruct(map[string]interface{}{
		"kind":    kind.String(),
		"payload": m,
		"metadata": map[string]interface{}{
			"source": "aag-engine",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create proto struct: %w", err)
	}

	// 2. Устанавливаем защитный таймаут на уровне вызова
	// Даже если ReliabilityWrapper имеет свой, адаптер должен иметь свой предел
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	// 3. Выполняем gRPC вызов к исполнителю
	resp, err := a.client.Execute(ctx, envelope)
	if err != nil {
		return nil, fmt.Errorf("executor call failed: %v", err)
	}

	// 4. Разбираем статус внутри ответа
	fields := resp.AsMap()
	status, _ := fields["status"].(string)
	switch status {
	case "ok":
		// Дальше к результату
	case "throttled":
		// Исполнитель уперся в лимиты внешней системы
		retryMs, _ := fields["retry_after_ms"].(float64)
		if retryMs <= 0 {
			retryMs = 1000
		}
		errMsg, _ := fields["error"].(string)
		return nil, &ThrottleError{
			RetryAfter: time.Duration(retryMs) * time.Millisecond,
			Cause:      fmt.Errorf("executor throttled: %s", errMsg),
		}
	default:
		errMsg, _ := fields["error"].(string)
		return nil, &ExecuteError{Kind: kind.String(), Status: status, Message: errMsg}
	}

	// 5. Маршалим результат обратно в JSON для контура
	result, _ := fields["result"].(map[string]interface{})
	resultBytes, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}

	return resultBytes, nil
}
