package intervaltrigger

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/pluginapi"
)

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func TestParseConfigRejectsNonPositiveInterval(t *testing.T) {
	_, err := ParseConfig(json.RawMessage(`{"intervalSeconds":0}`))
	require.Error(t, err)

	_, err = ParseConfig(nil)
	require.Error(t, err)
}

func TestParseConfigOK(t *testing.T) {
	cfg, err := ParseConfig(json.RawMessage(`{"intervalSeconds":5,"payload":{"k":"v"}}`))
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.IntervalSeconds)
	assert.JSONEq(t, `{"k":"v"}`, string(cfg.Payload))
}

func TestRuntimeEmitsOnTick(t *testing.T) {
	var count int32
	emit := func(ctx context.Context, payload json.RawMessage) (string, error) {
		atomic.AddInt32(&count, 1)
		return "evt", nil
	}

	instance, err := Factory(pluginapi.TriggerRuntimeContext{
		Config: json.RawMessage(`{"intervalSeconds":1}`),
		Services: pluginapi.TriggerServices{
			Logger: noopLogger{},
			Emit:   emit,
		},
	})
	require.NoError(t, err)
	runtime, ok := instance.(*Runtime)
	require.True(t, ok)

	// Speed the ticker up for the test rather than waiting out the
	// configured interval.
	runtime.interval = 10 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer runtime.Stop(ctx)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) >= 2
	}, time.Second, 5*time.Millisecond)
}

func TestRuntimeStartIsIdempotent(t *testing.T) {
	instance, err := Factory(pluginapi.TriggerRuntimeContext{
		Config: json.RawMessage(`{"intervalSeconds":1}`),
		Services: pluginapi.TriggerServices{
			Emit: func(ctx context.Context, payload json.RawMessage) (string, error) { return "", nil },
		},
	})
	require.NoError(t, err)
	runtime := instance.(*Runtime)

	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	require.NoError(t, runtime.Start(ctx))
	require.NoError(t, runtime.Stop(ctx))
}

func TestRuntimeStopWithoutStartIsNoop(t *testing.T) {
	instance, err := Factory(pluginapi.TriggerRuntimeContext{
		Config: json.RawMessage(`{"intervalSeconds":1}`),
	})
	require.NoError(t, err)
	runtime := instance.(*Runtime)

	require.NoError(t, runtime.Stop(context.Background()))
}

func TestRuntimeStopThenStartRestarts(t *testing.T) {
	var count int32
	instance, err := Factory(pluginapi.TriggerRuntimeContext{
		Config: json.RawMessage(`{"intervalSeconds":1}`),
		Services: pluginapi.TriggerServices{
			Emit: func(ctx context.Context, payload json.RawMessage) (string, error) {
				atomic.AddInt32(&count, 1)
				return "", nil
			},
		},
	})
	require.NoError(t, err)
	runtime := instance.(*Runtime)
	runtime.interval = 10 * time.Millisecond

	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	time.Sleep(25 * time.Millisecond)
	require.NoError(t, runtime.Stop(ctx))
	stoppedAt := atomic.LoadInt32(&count)
	require.Greater(t, stoppedAt, int32(0))

	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, stoppedAt, atomic.LoadInt32(&count), "no more emits once stopped")

	require.NoError(t, runtime.Start(ctx))
	defer runtime.Stop(ctx)
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&count) > stoppedAt
	}, time.Second, 5*time.Millisecond)
}
