package flags

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type fakeAudit struct {
	entries []domain.FlagAuditEntry
	err     error
}

func (f *fakeAudit) InsertFlagAudit(_ context.Context, e *domain.FlagAuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, *e)
	return nil
}

// deadRedis — клиент без сервера: любая операция падает с сетевой ошибкой
func deadRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		ReadTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestParseFlags_FullHash(t *testing.T) {
	f, err := parseFlags(map[string]string{
		"enabled":                  "true",
		"active":                   "true",
		"dry_run":                  "false",
		"require_confirmation":     "true",
		"level":                    "2",
		"killed":                   "false",
		"max_actions_per_hour":     "30",
		"max_errors_per_hour":      "15",
		"max_escalations_per_hour": "25",
	})

	require.NoError(t, err)
	assert.True(t, f.Enabled)
	assert.True(t, f.Active)
	assert.False(t, f.DryRun)
	assert.True(t, f.RequireConfirmation)
	assert.Equal(t, 2, f.Level)
	assert.False(t, f.Killed)
	assert.Equal(t, 30, f.MaxActionsPerHour)
	assert.Equal(t, 15, f.MaxErrorsPerHour)
	assert.Equal(t, 25, f.MaxEscalationsPerHour)
}

func TestParseFlags_MissingFieldsAreSafe(t *testing.T) {
	f, err := parseFlags(map[string]string{"enabled": "true"})

	require.NoError(t, err)
	assert.True(t, f.Enabled)
	assert.False(t, f.Active, "отсутствующий bool — безопасный false")
	// Незаданные пороги самоостановки получают дефолт, а не ноль
	assert.Equal(t, domain.DefaultMaxErrorsPerHour, f.MaxErrorsPerHour)
	assert.Equal(t, domain.DefaultMaxEscalationsPerHour, f.MaxEscalationsPerHour)
}

func TestParseFlags_GarbageIsError(t *testing.T) {
	_, err := parseFlags(map[string]string{"enabled": "да"})
	assert.Error(t, err)

	_, err = parseFlags(map[string]string{"level": "high"})
	assert.Error(t, err)
}

func TestStore_FailClosedOnRedisDown(t *testing.T) {
	s := NewStore(deadRedis(), &fakeAudit{}, zap.NewNop())

	f := s.Current(context.Background())

	assert.Equal(t, domain.SafeDisabledFlags(), f, "недоступный Redis выключает контур")
}

func TestStore_RepeatedReadsStructurallyIdentical(t *testing.T) {
	s := NewStore(deadRedis(), &fakeAudit{}, zap.NewNop())
	ctx := context.Background()

	first := s.Current(ctx)
	second := s.Current(ctx)

	assert.Equal(t, first, second)
}

func TestStore_MutationRequiresActorAndReason(t *testing.T) {
	s := NewStore(deadRedis(), &fakeAudit{}, zap.NewNop())
	ctx := context.Background()

	_, err := s.Enable(ctx, "", "rollout")
	assert.ErrorContains(t, err, "actor is required")

	_, err = s.Enable(ctx, "admin", "")
	assert.ErrorContains(t, err, "reason is required")
}

func TestStore_MutationFailsWhenStateWriteFails(t *testing.T) {
	audit := &fakeAudit{}
	s := NewStore(deadRedis(), audit, zap.NewNop())

	_, err := s.Enable(context.Background(), "admin", "go live")

	assert.Error(t, err)
	assert.Empty(t, audit.entries, "аудит не пишется, если состояние не переключилось")
}

func TestStore_SetLevelValidatesRange(t *testing.T) {
	s := NewStore(deadRedis(), &fakeAudit{}, zap.NewNop())

	_, err := s.SetLevel(context.Background(), 4, "admin", "mistake")
	assert.ErrorContains(t, err, "out of range")

	_, err = s.SetLevel(context.Background(), -1, "admin", "mistake")
	assert.ErrorContains(t, err, "out of range")
}

func TestStore_SetHourlyLimitsValidatesSign(t *testing.T) {
	s := NewStore(deadRedis(), &fakeAudit{}, zap.NewNop())

	_, err := s.SetHourlyLimits(context.Background(), -1, 10, 20, "admin", "typo")
	assert.ErrorContains(t, err, "non-negative")
}
