package policy

/*
Файл gate.go — политический гейт: быстрые проверки «можно ли в принципе»,
до тяжёлых валидаторов. Проверки идут строго по порядку и обрываются на
первой сработавшей (Short-Circuit), причина всегда называет именно её:
1. главный рубильник (enabled);
2. подсистема запущена (active);
3. kill switch не взведён;
4. уровень автономии достаточен для вида действия.
Флаги читаются заново на каждый вызов — см. flags.Store.
*/

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

// FlagSource — свежие флаги контура (fail-closed внутри)
type FlagSource interface {
	Current(ctx context.Context) domain.AutonomyFlags
}

// ThresholdSource — эффективные пороги вида (override из БД или вшитый дефолт)
type ThresholdSource interface {
	Effective(ctx context.Context, kind domain.ActionKind) domain.ActionThreshold
}

type Gate struct {
	flags      FlagSource
	thresholds ThresholdSource
	logger     *zap.Logger
}

func NewGate(flags FlagSource, thresholds ThresholdSource, logger *zap.Logger) *Gate {
	return &Gate{
		flags:      flags,
		thresholds: thresholds,
		logger:     logger.Named("gate"),
	}
}

// CanExecute отвечает на вопрос «имеет ли право контур запускать такой вид
// действия прямо сейчас». DryRun и RequiresConfirmation прокидываются всегда,
// даже при отказе: вызывающему нужен полный контекст.
func (g *Gate) CanExecute(ctx context.Context, kind domain.ActionKind) domain.GateDecision {
	f := g.flags.Current(ctx)

	d := domain.GateDecision{
		DryRun:               f.DryRun,
		RequiresConfirmation: f.RequireConfirmation,
		LevelCurrent:         f.Level,
	}

	// 0. Закрытый enum: неизвестный вид не проходит дальше границы
	if !kind.Valid() {
		d.Reason = fmt.Sprintf("unknown action kind %q", string(kind))
		d.LevelRequired = domain.LevelAutonomous + 1
		return d
	}

	required := g.thresholds.Effective(ctx, kind).RequiredLevel
	d.LevelRequired = required

	// 1. Главный рубильник
	if !f.Enabled {
		d.Reason = "autonomy master flag is disabled"
		return d
	}

	// 2. Подсистема
	if !f.Active {
		d.Reason = "autonomy subsystem is not active"
		return d
	}

	// 3. Аварийный стоп
	if f.Killed {
		d.Reason = "kill switch is engaged"
		return d
	}

	// 4. Уровень автономии
	if !f.LevelAllows(required) {
		d.Reason = fmt.Sprintf("autonomy level %d is below required level %d for %s",
			f.Level, required, kind)
		return d
	}

	d.Allowed = true
	d.Reason = "all gate checks passed"
	return d
}
