package connectors

import (
	"context"
	"fmt"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// ExecutionProvider — исполнитель действий одной capability. Payload и
// результат — JSON-байты: контур не навязывает исполнителям свои типы.
type ExecutionProvider interface {
	Call(ctx context.Context, kind domain.ActionKind, payload []byte) ([]byte, error)
}

// Registry маршрутизирует вызов по capability вида действия. Карта
// заполняется на старте и дальше не меняется, поэтому мьютекс не нужен.
type Registry struct {
	providers map[string]ExecutionProvider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]ExecutionProvider)}
}

// Register привязывает исполнителя к capability. Вызывать до старта.
func (r *Registry) Register(capability string, p ExecutionProvider) {
	r.providers[capability] = p
}

// Call находит исполнителя по capability вида и делегирует вызов.
// Вид без исполнителя — ошибка конфигурации, а не тихий no-op.
func (r *Registry) Call(ctx context.Context, kind domain.ActionKind, payload []byte) ([]byte, error) {
	capability := kind.Capability()
	p, ok := r.providers[capability]
	if !ok {
		return nil, fmt.Errorf("no executor registered for capability %q (kind %s)", capability, kind)
	}
	return p.Call(ctx, kind, payload)
}
