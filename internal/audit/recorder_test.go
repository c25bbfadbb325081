package audit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureStorage struct {
	mu      sync.Mutex
	batches [][]EvaluationEvent
	err     error
}

func (c *captureStorage) WriteBatch(_ context.Context, events []EvaluationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	batch := make([]EvaluationEvent, len(events))
	copy(batch, events)
	c.batches = append(c.batches, batch)
	return nil
}

func (c *captureStorage) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func event(validator string) EvaluationEvent {
	return EvaluationEvent{
		ID:        "ev-" + validator,
		TraceID:   "trace-1",
		LeadID:    "lead-1",
		Kind:      "message.send",
		Validator: validator,
		Passed:    true,
	}
}

func TestRecorder_StopDrainsEverything(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 1000, time.Hour) // Таймер не сработает — только drain
	rc.Start()

	for i := 0; i < 250; i++ {
		rc.Record(event(fmt.Sprintf("v-%d", i)))
	}
	rc.Stop()

	assert.Equal(t, 250, storage.total(), "Stop дописывает буфер без потерь")
}

func TestRecorder_FlushesAtBatchLimit(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 1000, time.Hour)
	rc.Start()

	for i := 0; i < 100; i++ {
		rc.Record(event(fmt.Sprintf("v-%d", i)))
	}
	// Пачка в 100 уходит без таймера и без Stop
	require.Eventually(t, func() bool {
		return storage.total() == 100
	}, time.Second, 10*time.Millisecond)

	rc.Stop()
	assert.Equal(t, 100, storage.total())
}

func TestRecorder_FlushesOnTimer(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 1000, 20*time.Millisecond)
	rc.Start()
	defer rc.Stop()

	rc.Record(event("confidence"))
	rc.Record(event("sentiment"))

	require.Eventually(t, func() bool {
		return storage.total() == 2
	}, time.Second, 5*time.Millisecond)
}

func TestRecorder_SetsTimestampWhenZero(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 10, time.Hour)
	rc.Start()

	before := time.Now()
	rc.Record(event("opt_out"))
	rc.Stop()

	require.Equal(t, 1, storage.total())
	got := storage.batches[0][0]
	assert.False(t, got.Timestamp.IsZero())
	assert.False(t, got.Timestamp.Before(before))
}

func TestRecorder_PreservesExplicitTimestamp(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 10, time.Hour)
	rc.Start()

	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := event("cooldown")
	ev.Timestamp = ts
	rc.Record(ev)
	rc.Stop()

	require.Equal(t, 1, storage.total())
	assert.Equal(t, ts, storage.batches[0][0].Timestamp)
}

func TestRecorder_RecordAfterStopDropped(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 10, time.Hour)
	rc.Start()
	rc.Stop()

	// Не должно ни паниковать, ни попадать в хранилище
	require.NotPanics(t, func() {
		rc.Record(event("late"))
	})
	assert.Equal(t, 0, storage.total())
}

func TestRecorder_OverflowDoesNotBlock(t *testing.T) {
	storage := &captureStorage{}
	rc := NewRecorder(storage, zap.NewNop(), 1, time.Hour)
	// Воркер не запущен: канал забивается первым событием

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			rc.Record(event(fmt.Sprintf("v-%d", i)))
		}
		close(done)
	}()

	select {
	case <-done:
		// Load shedding: лишние события сброшены, Record не блокирует
	case <-time.After(time.Second):
		t.Fatal("Record заблокировался на переполненном буфере")
	}
}

func TestRecorder_StorageErrorDoesNotKillWorker(t *testing.T) {
	storage := &captureStorage{err: errors.New("pg down")}
	rc := NewRecorder(storage, zap.NewNop(), 10, 10*time.Millisecond)
	rc.Start()

	rc.Record(event("confidence"))
	time.Sleep(50 * time.Millisecond)

	// БД ожила — воркер продолжает писать
	storage.mu.Lock()
	storage.err = nil
	storage.mu.Unlock()

	rc.Record(event("sentiment"))
	rc.Stop()

	require.GreaterOrEqual(t, storage.total(), 1)
}

func TestRecorder_Utilization(t *testing.T) {
	rc := NewRecorder(&captureStorage{}, zap.NewNop(), 10, time.Hour)
	assert.Equal(t, 0.0, rc.Utilization())

	rc.Record(event("a"))
	rc.Record(event("b"))
	assert.InDelta(t, 0.2, rc.Utilization(), 0.001)
}
