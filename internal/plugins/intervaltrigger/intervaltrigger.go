// Package intervaltrigger is an example pluginapi.TriggerRuntime: it
// fires on a fixed wall-clock interval, for bundles that should rebuild
// or recipients that should be reminded on a schedule rather than in
// response to an external event. Grounded on the teacher's
// AsyncWebhookProcessor.Start/Stop lifecycle (running flag guarded by a
// mutex, a stop channel, a WaitGroup'd background goroutine) in
// internal/core/processing/async_processor.go, narrowed from a worker
// pool to the single ticker loop this capability needs.
package intervaltrigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/latchflow/latchflow/internal/pluginapi"
)

// PluginName is the name this capability registers under.
const PluginName = "interval"

// CapabilityKey is the trigger key within PluginName.
const CapabilityKey = "tick"

// Config is the interval trigger's capability config.
type Config struct {
	IntervalSeconds int             `json:"intervalSeconds"`
	Payload         json.RawMessage `json:"payload,omitempty"`
}

// ParseConfig unmarshals and validates raw capability config JSON.
func ParseConfig(raw json.RawMessage) (Config, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("intervaltrigger: parse config: %w", err)
		}
	}
	if cfg.IntervalSeconds <= 0 {
		return Config{}, fmt.Errorf("intervaltrigger: intervalSeconds must be positive, got %d", cfg.IntervalSeconds)
	}
	return cfg, nil
}

// Runtime fires rtCtx.Services.Emit every Config.IntervalSeconds while
// started.
type Runtime struct {
	interval time.Duration
	payload  json.RawMessage
	services pluginapi.TriggerServices

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

var _ pluginapi.TriggerRuntime = (*Runtime)(nil)

// Factory is the pluginapi.TriggerFactory for this capability.
func Factory(rtCtx pluginapi.TriggerRuntimeContext) (any, error) {
	cfg, err := ParseConfig(rtCtx.Config)
	if err != nil {
		return nil, err
	}
	return &Runtime{
		interval: time.Duration(cfg.IntervalSeconds) * time.Second,
		payload:  cfg.Payload,
		services: rtCtx.Services,
	}, nil
}

// Start begins the ticker loop. It is a no-op if already running.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})

	r.wg.Add(1)
	go r.loop(ctx, r.stopCh)

	return nil
}

// Stop signals the loop to exit and waits for it to finish.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) loop(ctx context.Context, stopCh chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if r.services.Emit == nil {
				continue
			}
			if _, err := r.services.Emit(ctx, r.payload); err != nil && r.services.Logger != nil {
				r.services.Logger.Error("intervaltrigger: emit failed", "error", err)
			}
		}
	}
}
