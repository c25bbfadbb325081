package domain

import "fmt"

// ActionKind — закрытый перечень автономных действий (Closed Enum).
// Любая строка вне этого списка отбрасывается на границе системы:
// валидный Kind гарантирован везде внутри pipeline.
type ActionKind string

const (
	KindMessageSend  ActionKind = "message.send"  // Исходящее сообщение лиду
	KindContractSend ActionKind = "contract.send" // Отправка договора на подпись (e-sign)
	KindLeadEnrich   ActionKind = "lead.enrich"   // Обогащение и скоринг карточки лида
	KindLeadReengage ActionKind = "lead.reengage" // Реактивация давно остывшего лида
	KindDataRequest  ActionKind = "data.request"  // Запрос недостающих контактных данных
)

// AllKinds порядок фиксирован: его используют миграции и консоль
func AllKinds() []ActionKind {
	return []ActionKind{
		KindMessageSend,
		KindContractSend,
		KindLeadEnrich,
		KindLeadReengage,
		KindDataRequest,
	}
}

// ParseActionKind — единственная точка входа для строк извне (API, БД, gRPC).
func ParseActionKind(s string) (ActionKind, error) {
	k := ActionKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown action kind %q", s)
	}
	return k, nil
}

func (k ActionKind) Valid() bool {
	switch k {
	case KindMessageSend, KindContractSend, KindLeadEnrich, KindLeadReengage, KindDataRequest:
		return true
	}
	return false
}

func (k ActionKind) String() string { return string(k) }

// kindSpec — вшитые свойства вида действия. Не редактируются в рантайме:
// это контракт между шедулером, gate и коннекторами.
type kindSpec struct {
	RequiredLevel int    // Минимальный уровень автономии
	Capability    string // Имя capability-гейта (Redis set)
	Outbound      bool   // true = касается живого человека (окно отправки имеет смысл)
}

var kindSpecs = map[ActionKind]kindSpec{
	KindMessageSend:  {RequiredLevel: LevelSupervised, Capability: CapabilityMessaging, Outbound: true},
	KindContractSend: {RequiredLevel: LevelSupervised, Capability: CapabilityContracts, Outbound: true},
	KindLeadEnrich:   {RequiredLevel: LevelSuggest, Capability: CapabilityEnrichment, Outbound: false},
	KindLeadReengage: {RequiredLevel: LevelSupervised, Capability: CapabilityMessaging, Outbound: true},
	KindDataRequest:  {RequiredLevel: LevelSuggest, Capability: CapabilityEnrichment, Outbound: false},
}

// Имена capability-гейтов (группы действий, отключаемые одним рубильником)
const (
	CapabilityMessaging  = "messaging"
	CapabilityContracts  = "contracts"
	CapabilityEnrichment = "enrichment"
)

// AllCapabilities порядок фиксирован: его используют warmup и консоль
func AllCapabilities() []string {
	return []string{CapabilityMessaging, CapabilityContracts, CapabilityEnrichment}
}

// RequiredLevel — какой уровень автономии нужен для самостоятельного запуска.
// Для неизвестного Kind возвращаем заведомо недостижимый уровень (Fail-Safe).
func (k ActionKind) RequiredLevel() int {
	if s, ok := kindSpecs[k]; ok {
		return s.RequiredLevel
	}
	return LevelAutonomous + 1
}

// Capability — имя гейта; пустая строка для неизвестного Kind трактуется как «закрыто»
func (k ActionKind) Capability() string {
	return kindSpecs[k].Capability
}

// Outbound — действие видно живому человеку (применяется окно отправки)
func (k ActionKind) Outbound() bool {
	return kindSpecs[k].Outbound
}

// Веса интента для скоринга. Всё, что не "interested" и не "question",
// получает базовый вес — включая "unknown" (его ловит эскалация, не скоринг).
// "internal" — для действий без коммуникации (обогащение): интент к ним
// неприменим, и это не то же самое, что «не распознан».
const (
	IntentInterested = "interested"
	IntentQuestion   = "question"
	IntentObjection  = "objection"
	IntentUnknown    = "unknown"
	IntentInternal   = "internal"
)

func IntentWeight(intent string) float64 {
	switch intent {
	case IntentInterested:
		return 1.0
	case IntentQuestion:
		return 0.7
	default:
		return 0.5
	}
}
