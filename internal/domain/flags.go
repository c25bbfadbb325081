package domain

import "time"

// Уровни автономии. Шкала накопительная: каждый следующий уровень
// включает права предыдущего.
const (
	LevelManual     = 0 // Система только наблюдает, все действия руками
	LevelSuggest    = 1 // Разрешены внутренние действия (обогащение, скоринг)
	LevelSupervised = 2 // Разрешены исходящие действия под надзором валидаторов
	LevelAutonomous = 3 // Полная автономия в пределах лимитов
)

// AutonomyFlags — управляющее состояние контура (Control Plane).
// Источник истины — Redis-хэш; каждый просчёт читает его заново,
// кэширование запрещено: оператор должен иметь мгновенный рубильник.
type AutonomyFlags struct {
	Enabled             bool `json:"enabled" redis:"enabled"`                           // Главный рубильник
	Active              bool `json:"active" redis:"active"`                             // Подсистема запущена (отличается от Enabled: можно «вооружить», но не запускать)
	DryRun              bool `json:"dry_run" redis:"dry_run"`                           // Полный прогон без побочных эффектов
	RequireConfirmation bool `json:"require_confirmation" redis:"require_confirmation"` // Каждое действие ждёт подтверждения человека
	Level               int  `json:"level" redis:"level"`                               // 0..3, см. Level*
	Killed              bool `json:"killed" redis:"killed"`                             // Kill-switch: аварийный стоп поверх остальных флагов
	MaxActionsPerHour   int  `json:"max_actions_per_hour" redis:"max_actions_per_hour"` // Глобальный бюджет действий, 0 = без бюджета сверх лимитов вида

	// Пороги самоостановки (Self-Pause). Превышение за скользящий час
	// переводит контур в Disabled без участия человека.
	MaxErrorsPerHour      int `json:"max_errors_per_hour" redis:"max_errors_per_hour"`
	MaxEscalationsPerHour int `json:"max_escalations_per_hour" redis:"max_escalations_per_hour"`
}

// SafeDisabledFlags — состояние «всё выключено». Возвращается при любой
// ошибке чтения конфигурации: недоступный Redis не должен открывать контур.
func SafeDisabledFlags() AutonomyFlags {
	return AutonomyFlags{
		Enabled:               false,
		Active:                false,
		DryRun:                true,
		RequireConfirmation:   true,
		Level:                 LevelManual,
		Killed:                false,
		MaxActionsPerHour:     0,
		MaxErrorsPerHour:      DefaultMaxErrorsPerHour,
		MaxEscalationsPerHour: DefaultMaxEscalationsPerHour,
	}
}

// Дефолты порогов самоостановки (применяются и когда поле в хэше не задано)
const (
	DefaultMaxErrorsPerHour      = 10
	DefaultMaxEscalationsPerHour = 20
)

// LevelAllows — достаточно ли текущего уровня для требуемого
func (f AutonomyFlags) LevelAllows(required int) bool {
	return f.Level >= required
}

// FlagAuditEntry — кто, что и почему переключил. Журнал immutable:
// каждая мутация флагов обязана оставить ровно одну запись.
type FlagAuditEntry struct {
	ID       string        `json:"id"`
	Actor    string        `json:"actor"`  // Логин оператора или "system:self-pause"
	Action   string        `json:"action"` // enable / disable / set_dry_run / set_level / set_limits
	Reason   string        `json:"reason"` // Сохраняется дословно, без нормализации
	Previous AutonomyFlags `json:"previous"`
	Current  AutonomyFlags `json:"current"`

	CreatedAt time.Time `json:"created_at"`
}
