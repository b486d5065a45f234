package action_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/action"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/pluginapi"
	"github.com/latchflow/latchflow/internal/queue"
)

type invocationRow struct {
	status model.InvocationStatus
	result []byte
}

type fakeActionStore struct {
	mu          sync.Mutex
	nextID      int
	invocations []invocationRow
	byID        map[string]int
	def         model.ActionDefinition
	cap         model.PluginCapability
	plugin      model.Plugin
	auditPhases []action.AuditPhase
	done        chan struct{}
	wantRows    int
}

func newFakeActionStore(wantRows int) *fakeActionStore {
	return &fakeActionStore{
		byID:     make(map[string]int),
		wantRows: wantRows,
		done:     make(chan struct{}),
	}
}

func (s *fakeActionStore) CreateActionInvocation(_ context.Context, inv model.ActionInvocation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := idFor(s.nextID)
	s.invocations = append(s.invocations, invocationRow{status: model.InvocationPending})
	s.byID[id] = len(s.invocations) - 1
	return id, nil
}

func idFor(n int) string { return "inv-" + string(rune('0'+n)) }

func (s *fakeActionStore) GetActionDefinition(context.Context, string) (model.ActionDefinition, error) {
	return s.def, nil
}

func (s *fakeActionStore) GetCapabilityForAction(context.Context, string) (model.PluginCapability, model.Plugin, error) {
	return s.cap, s.plugin, nil
}

func (s *fakeActionStore) FinalizeInvocation(_ context.Context, invocationID string, status model.InvocationStatus, result []byte, _ *int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[invocationID]
	if !ok {
		return assert.AnError
	}
	s.invocations[idx] = invocationRow{status: status, result: result}
	if len(s.invocations) >= s.wantRows {
		select {
		case <-s.done:
		default:
			allTerminal := true
			for _, row := range s.invocations {
				if row.status == model.InvocationPending {
					allTerminal = false
				}
			}
			if allTerminal {
				close(s.done)
			}
		}
	}
	return nil
}

func (s *fakeActionStore) RecordPluginActionAudit(_ context.Context, entry action.ActionAuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditPhases = append(s.auditPhases, entry.Phase)
	return nil
}

func (s *fakeActionStore) snapshot() []invocationRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]invocationRow, len(s.invocations))
	copy(out, s.invocations)
	return out
}

type retryThenSucceedRuntime struct {
	mu    sync.Mutex
	calls int
}

func (r *retryThenSucceedRuntime) Execute(context.Context, pluginapi.ActionInput) (pluginapi.ActionResult, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	r.mu.Unlock()

	if call == 1 {
		delay := int64(50)
		return pluginapi.ActionResult{Retry: &pluginapi.RetryRequest{DelayMs: &delay}}, nil
	}
	return pluginapi.ActionResult{Success: json.RawMessage(`{"ok":true}`)}, nil
}

func TestActionRetryThenSucceed(t *testing.T) {
	store := newFakeActionStore(2)
	store.def = model.ActionDefinition{ID: "act-1", IsEnabled: true, Config: json.RawMessage(`{}`)}
	store.cap = model.PluginCapability{ID: "cap-1", Kind: model.CapabilityAction}
	store.plugin = model.Plugin{ID: "plugin-1", Name: "webhook"}

	registry := pluginapi.NewRegistry()
	rt := &retryThenSucceedRuntime{}
	registry.RegisterAction(pluginapi.ActionRef{
		Capability: pluginapi.CapabilityRef{CapabilityID: "cap-1"},
		Factory: func(pluginapi.CapabilityRef, []byte, []byte) (any, error) {
			return rt, nil
		},
	})

	q := queue.New(8)
	consumer := action.NewConsumer(registry, store, q, pluginapi.EncryptOptions{Mode: pluginapi.ModeNone}, slog.Default(), action.WithTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	defer consumer.Stop()

	require.NoError(t, q.Enqueue(ctx, queue.ActionMessage{ActionDefinitionID: "act-1", Attempt: 1}))

	select {
	case <-store.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for both invocation rows to finalize")
	}

	rows := store.snapshot()
	require.Len(t, rows, 2)
	assert.Equal(t, model.InvocationRetrying, rows[0].status)
	assert.Equal(t, model.InvocationSuccess, rows[1].status)
	assert.Equal(t, 2, rt.calls)
}

type neverResolvingRuntime struct{}

func (neverResolvingRuntime) Execute(ctx context.Context, _ pluginapi.ActionInput) (pluginapi.ActionResult, error) {
	<-ctx.Done()
	return pluginapi.ActionResult{}, ctx.Err()
}

func TestActionTimeoutFinalizesFailedPermanent(t *testing.T) {
	store := newFakeActionStore(1)
	store.def = model.ActionDefinition{ID: "act-timeout", IsEnabled: true, Config: json.RawMessage(`{}`)}
	store.cap = model.PluginCapability{ID: "cap-timeout", Kind: model.CapabilityAction}
	store.plugin = model.Plugin{ID: "plugin-1", Name: "hangs"}

	registry := pluginapi.NewRegistry()
	registry.RegisterAction(pluginapi.ActionRef{
		Capability: pluginapi.CapabilityRef{CapabilityID: "cap-timeout"},
		Factory: func(pluginapi.CapabilityRef, []byte, []byte) (any, error) {
			return neverResolvingRuntime{}, nil
		},
	})

	q := queue.New(4)
	consumer := action.NewConsumer(registry, store, q, pluginapi.EncryptOptions{Mode: pluginapi.ModeNone}, slog.Default(), action.WithTimeout(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	defer consumer.Stop()

	require.NoError(t, q.Enqueue(ctx, queue.ActionMessage{ActionDefinitionID: "act-timeout", Attempt: 1}))

	select {
	case <-store.done:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for invocation to finalize")
	}

	rows := store.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, model.InvocationFailedPermanent, rows[0].status)
	assert.Contains(t, string(rows[0].result), "ACTION_TIMEOUT")
}

func TestActionDisabledDefinitionSkipped(t *testing.T) {
	store := newFakeActionStore(1)
	store.def = model.ActionDefinition{ID: "act-off", IsEnabled: false}
	store.cap = model.PluginCapability{ID: "cap-off", Kind: model.CapabilityAction}

	registry := pluginapi.NewRegistry()
	q := queue.New(4)
	consumer := action.NewConsumer(registry, store, q, pluginapi.EncryptOptions{Mode: pluginapi.ModeNone}, slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consumer.Start(ctx)
	defer consumer.Stop()

	require.NoError(t, q.Enqueue(ctx, queue.ActionMessage{ActionDefinitionID: "act-off", Attempt: 1}))

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for invocation to finalize")
	}

	rows := store.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, model.InvocationSkippedDisabled, rows[0].status)
	assert.Contains(t, string(rows[0].result), "ACTION_DISABLED")
}
