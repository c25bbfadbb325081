package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "salesai"
)

// Ключи состояния (Hash / Sets)
const (
	// RedisKeyAutonomyFlags — хэш с управляющими флагами контура.
	// Единственный источник истины; читается заново на каждый просчёт.
	RedisKeyAutonomyFlags = RedisNamespace + ":autonomy:flags"

	// RedisKeyCapabilities — set включённых capability-гейтов
	RedisKeyCapabilities = RedisNamespace + ":autonomy:capabilities"

	// RedisKeyCapabilitiesSeeded — маркер «гейты уже сеялись». Нужен,
	// потому что пустой set неотличим от несуществующего.
	RedisKeyCapabilitiesSeeded = RedisNamespace + ":autonomy:capabilities:seeded"

	RedisKeyLockCapWarmup   = RedisNamespace + ":lock:warmup:capabilities"
	RedisKeyLockFlagsWarmup = RedisNamespace + ":lock:warmup:flags"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanFlagsUpdate — трансляция изменений флагов (best-effort)
	RedisChanFlagsUpdate = RedisNamespace + ":autonomy:flags-signal"

	// RedisChanCapabilities — сигналы включения/выключения гейтов
	RedisChanCapabilities = RedisNamespace + ":autonomy:capability-signal"

	// RedisChanAgentPause — сигналы паузы агентов конвейера
	RedisChanAgentPause = RedisNamespace + ":agents:pause-signal"

	// RedisChanLoopKick — ручной запуск тика из консоли
	RedisChanLoopKick = RedisNamespace + ":loop:kick"

	// RedisChanAlerts — алерты для операторов (самоостановка, эскалации).
	// Доставка best-effort: отправка после durable-записи, сбой глотается.
	RedisChanAlerts = RedisNamespace + ":alerts"
)

// GetWarmupLockKey Генератор ключей для блокировок (если нужны динамические)
func GetWarmupLockKey(resource string) string {
	return fmt.Sprintf("%s:lock:warmup:%s", RedisNamespace, resource)
}
