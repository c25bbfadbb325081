package audit

/*
Файл recorder.go реализует сбор и персистентность телеметрии валидаторов
(Evaluation Trail).

Ключевые особенности архитектуры:
- Non-blocking Logging: Использование неблокирующих каналов для передачи событий
  из Hot Path губернатора. Это гарантирует, что задержки записи в БД не влияют
  на время просчёта кандидата.
- Batching & Efficiency: Накопление событий в памяти и пакетная запись (Bulk Insert)
  в PostgreSQL по таймеру или при достижении лимита (100 событий).
- Drain Pattern & Graceful Shutdown: Реализован механизм полной вычитки буфера
  при остановке сервиса. С помощью sync.WaitGroup и закрытия каналов гарантируется
  Final Flush — отсутствие потерь данных при перезагрузке системы.
- Reliability: Устойчивость к кратковременным сбоям БД за счет изоляции воркера
  и использования контекста Background для завершающих операций.

Журнал решений (Decision) сюда не ходит: он пишется синхронно, потому что
rate-лимиты обязаны видеть свежие решения. Телеметрия отставание переживает.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически будут сохраняться события
type StorageInterface interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []EvaluationEvent) error
}

type EventSink interface {
	Record(event EvaluationEvent)
}

type Recorder struct {
	ch     chan EvaluationEvent // Буфер для асинхронности
	repo   StorageInterface     // Интерфейс для Postgres/ClickHouse
	logger *zap.Logger
	wg     sync.WaitGroup

	flushEvery time.Duration

	// «Железобетонная» защита (Bulletproof) вдруг кто-то вызовет Record после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewRecorder(repo StorageInterface, logger *zap.Logger, bufSize int, flushEvery time.Duration) *Recorder {
	if bufSize <= 0 {
		bufSize = 10000
	}
	if flushEvery <= 0 {
		flushEvery = 500 * time.Millisecond
	}
	return &Recorder{
		ch:         make(chan EvaluationEvent, bufSize),
		repo:       repo,
		logger:     logger.With(zap.String("mod", "recorder")),
		flushEvery: flushEvery,
	}
}

func (rc *Recorder) Start() {
	rc.wg.Add(1)
	go rc.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (rc *Recorder) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&rc.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Record успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Закрываем (Drain Pattern). Завершение горутины происходит
	// исключительно через закрытие входного канала.
	rc.logger.Info("stopping recorder: closing channel and flushing buffer...")
	close(rc.ch)
	rc.wg.Wait()
	rc.logger.Info("recorder stopped gracefully")
}

// Utilization — заполненность буфера 0..1 для метрик
func (rc *Recorder) Utilization() float64 {
	return float64(len(rc.ch)) / float64(cap(rc.ch))
}

func (rc *Recorder) Record(event EvaluationEvent) {
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&rc.isClosed) == 1 {
		rc.logger.Warn("evaluation event dropped: recorder is stopping", zap.String("id", event.ID))
		return
	}

	// используем стратегию Load Shedding (сброс нагрузки)
	select {
	case rc.ch <- event:
	default:
		// Если канал переполнен (Backpressure), пишем в стандартный логгер,
		// чтобы не терять данные в критических ситуациях
		rc.logger.Error("evaluation_buffer_overflow",
			zap.String("validator", event.Validator),
			zap.String("trace_id", event.TraceID),
		)
	}
}

func (rc *Recorder) worker() {
	defer rc.wg.Done()

	batch := make([]EvaluationEvent, 0, 100)
	ticker := time.NewTicker(rc.flushEvery)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Используем Background, так как основной контекст может быть уже закрыт
			if err := rc.repo.WriteBatch(context.Background(), batch); err != nil {
				rc.logger.Error("evaluation flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		select {
		case event, ok := <-rc.ch:
			if !ok {
				// Канал закрыт в Stop() — это самодостаточный сигнал для завершения.
				// Воркер сначала вычитает всё, что осталось в очереди,
				// только потом получит ok == false и сделает финальный flush.
				flush()
				rc.logger.Info("recorder worker finished")
				return
			}
			batch = append(batch, event)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
