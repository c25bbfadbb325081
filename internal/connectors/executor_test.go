package connectors

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xela07ax/salesai-autopilot/internal/domain"
)

type stubProvider struct {
	lastKind    domain.ActionKind
	lastPayload []byte
	resp        []byte
	err         error
}

func (s *stubProvider) Call(_ context.Context, kind domain.ActionKind, payload []byte) ([]byte, error) {
	s.lastKind = kind
	s.lastPayload = payload
	return s.resp, s.err
}

func TestRegistry_RoutesByCapability(t *testing.T) {
	messaging := &stubProvider{resp: []byte(`{"status":"sent"}`)}
	enrichment := &stubProvider{resp: []byte(`{"status":"enriched"}`)}

	r := NewRegistry()
	r.Register(domain.CapabilityMessaging, messaging)
	r.Register(domain.CapabilityEnrichment, enrichment)

	// message.send и lead.reengage делят capability messaging
	out, err := r.Call(context.Background(), domain.KindLeadReengage, []byte(`{"lead_ids":["l1"]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"sent"}`, string(out))
	assert.Equal(t, domain.KindLeadReengage, messaging.lastKind)
	assert.JSONEq(t, `{"lead_ids":["l1"]}`, string(messaging.lastPayload))

	out, err = r.Call(context.Background(), domain.KindLeadEnrich, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"enriched"}`, string(out))
	assert.Equal(t, domain.KindLeadEnrich, enrichment.lastKind)
}

func TestRegistry_MissingExecutor(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.CapabilityMessaging, &stubProvider{})

	_, err := r.Call(context.Background(), domain.KindContractSend, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no executor registered")
	assert.Contains(t, err.Error(), domain.CapabilityContracts)
}

func TestRegistry_UnknownKindNotCallable(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.CapabilityMessaging, &stubProvider{})

	// У неизвестного вида capability пустая — исполнителя не найдется
	_, err := r.Call(context.Background(), domain.ActionKind("lead.delete"), nil)
	require.Error(t, err)
}

func TestRegistry_PropagatesProviderError(t *testing.T) {
	boom := errors.New("smtp unreachable")
	r := NewRegistry()
	r.Register(domain.CapabilityMessaging, &stubProvider{err: boom})

	_, err := r.Call(context.Background(), domain.KindMessageSend, nil)
	assert.ErrorIs(t, err, boom)
}

func TestMockExecutor_SimulatedFailures(t *testing.T) {
	exec := &MockExecutor{}

	_, err := exec.Call(context.Background(), domain.KindMessageSend, []byte(`{"simulate":"fail"}`))
	require.Error(t, err)

	_, err = exec.Call(context.Background(), domain.KindMessageSend, []byte(`{"simulate":"throttle"}`))
	require.Error(t, err)

	var throttle *ThrottleError
	require.ErrorAs(t, err, &throttle)
	assert.Equal(t, 200*time.Millisecond, throttle.RetryAfter)
	assert.Error(t, throttle.Unwrap())
}

func TestMockExecutor_KindResponses(t *testing.T) {
	exec := &MockExecutor{}

	for _, kind := range domain.AllKinds() {
		out, err := exec.Call(context.Background(), kind, nil)
		require.NoError(t, err, kind)

		var m map[string]any
		require.NoError(t, json.Unmarshal(out, &m), kind)
		assert.NotEmpty(t, m["status"], kind)
	}

	_, err := exec.Call(context.Background(), domain.ActionKind("lead.delete"), nil)
	assert.Error(t, err, "неизвестный вид не исполняется")
}

func TestMockExecutor_HonorsContextCancel(t *testing.T) {
	exec := &MockExecutor{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := exec.Call(ctx, domain.KindMessageSend, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteError_Message(t *testing.T) {
	err := &ExecuteError{Kind: "message.send", Status: "INVALID_RECIPIENT", Message: "mailbox does not exist"}
	assert.Contains(t, err.Error(), "message.send")
	assert.Contains(t, err.Error(), "INVALID_RECIPIENT")
	assert.Contains(t, err.Error(), "mailbox does not exist")
}
