package flags

/*
Файл gates.go — capability-гейты: именованные рубильники для групп
действий (messaging, contracts, enrichment). В отличие от флагов,
гейты читаются из L1 (RAM): это Hot Path валидатора, а рассинхрон
закрывается Pub/Sub-сигналом и ресинком при переподключении.
Неизвестный или незагруженный гейт считается закрытым (Fail-Safe).
*/

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
	"github.com/xela07ax/salesai-autopilot/internal/infra"
)

type GateManager struct {
	rdb    *redis.Client
	logger *zap.Logger
	mu     sync.RWMutex
	open   map[string]bool // L1: имя гейта -> включен
}

func NewGateManager(rdb *redis.Client, logger *zap.Logger) *GateManager {
	return &GateManager{
		rdb:    rdb,
		logger: logger.With(zap.String("mod", "gates")),
		open:   make(map[string]bool),
	}
}

// EnsureDefaults — прогрев гейтов при первой установке: все известные
// capability сеются открытыми. Это безопасно — мастер-флаг после
// установки выключен, контур не двинется, пока его не включат явно.
// Маркер отдельный от самого set: пустой set после прогрева — осознанное
// решение админа (всё закрыл), а не отсутствие конфигурации.
func (gm *GateManager) EnsureDefaults(ctx context.Context) error {
	ok, err := gm.rdb.SetNX(ctx, infra.RedisKeyLockCapWarmup, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой инстанс уже греет
	}

	seeded, err := gm.rdb.Exists(ctx, infra.RedisKeyCapabilitiesSeeded).Result()
	if err != nil {
		gm.logger.Warn("could not check gate seed marker, skipping warm-up", zap.Error(err))
		return nil
	}
	if seeded > 0 {
		return nil
	}

	gm.logger.Info("seeding capability gates open on first start")
	caps := domain.AllCapabilities()
	members := make([]interface{}, 0, len(caps))
	for _, c := range caps {
		members = append(members, c)
	}
	if err := gm.rdb.SAdd(ctx, infra.RedisKeyCapabilities, members...).Err(); err != nil {
		return fmt.Errorf("gate warm-up: %w", err)
	}
	if err := gm.rdb.Set(ctx, infra.RedisKeyCapabilitiesSeeded, time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
		gm.logger.Warn("gate seed marker write failed", zap.Error(err))
	}
	return nil
}

// Init загружает состояние гейтов при старте и при каждом переподключении
func (gm *GateManager) Init(ctx context.Context) error {
	names, err := gm.rdb.SMembers(ctx, infra.RedisKeyCapabilities).Result()
	if err != nil {
		return fmt.Errorf("failed to fetch capabilities from Redis: %w", err)
	}

	gm.mu.Lock()
	gm.open = make(map[string]bool, len(names))
	for _, name := range names {
		gm.open[name] = true
	}
	gm.mu.Unlock()

	gm.logger.Info("capability gates loaded", zap.Int("open", len(names)))
	return nil
}

// StartListener подписывается на переключения гейтов в реальном времени
func (gm *GateManager) StartListener(ctx context.Context) {
	ListenStateResilient(ctx, gm.rdb, gm.logger, infra.RedisChanCapabilities,
		func() error { return gm.Init(ctx) }, // Переподключение
		func(name string, status bool) { // Обработка сообщения
			gm.mu.Lock()
			defer gm.mu.Unlock()
			if status {
				gm.open[name] = true
			} else {
				delete(gm.open, name)
			}
		},
	)
}

// IsOpen — максимально быстрый метод для проверки в Hot Path
func (gm *GateManager) IsOpen(capability string) bool {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.open[capability]
}

// SetOpen — админская мутация: Redis set + сигнал подписчикам.
// Порядок тот же, что у флагов: сначала durable-состояние, потом сигнал.
func (gm *GateManager) SetOpen(ctx context.Context, capability string, on bool) error {
	var err error
	if on {
		err = gm.rdb.SAdd(ctx, infra.RedisKeyCapabilities, capability).Err()
	} else {
		err = gm.rdb.SRem(ctx, infra.RedisKeyCapabilities, capability).Err()
	}
	if err != nil {
		return fmt.Errorf("gate %s update: %w", capability, err)
	}

	// Локальный кэш обновляем сразу, не дожидаясь своего же сигнала
	gm.mu.Lock()
	if on {
		gm.open[capability] = true
	} else {
		delete(gm.open, capability)
	}
	gm.mu.Unlock()

	payload := fmt.Sprintf("%s:%t", capability, on)
	if err := gm.rdb.Publish(ctx, infra.RedisChanCapabilities, payload).Err(); err != nil {
		gm.logger.Warn("gate signal publish failed", zap.String("capability", capability), zap.Error(err))
	}
	return nil
}

// Snapshot — состояние всех гейтов для консоли
func (gm *GateManager) Snapshot() map[string]bool {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	out := make(map[string]bool, len(gm.open))
	for name := range gm.open {
		out[name] = true
	}
	return out
}
