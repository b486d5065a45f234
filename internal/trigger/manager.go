package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/pluginapi"
)

// managedRuntime is {ref, runtime} keyed by trigger definition id (spec
// §4.2's "Store {ref, runtime} keyed by defId").
type managedRuntime struct {
	ref     pluginapi.TriggerRef
	runtime pluginapi.TriggerRuntime
}

// Manager keeps exactly the set of enabled trigger runtimes alive,
// grounded on AsyncWebhookProcessor's Start/Stop worker-pool lifecycle —
// here generalized from a fixed worker pool to a dynamic, per-definition
// runtime map since trigger runtimes are long-lived, not one-shot jobs.
type Manager struct {
	registry *pluginapi.Registry
	store    Store
	runner   *Runner
	encOpts  pluginapi.EncryptOptions
	logger   obslog.Logger

	mu       sync.Mutex
	runtimes map[string]managedRuntime
}

// NewManager constructs a Manager.
func NewManager(registry *pluginapi.Registry, store Store, runner *Runner, encOpts pluginapi.EncryptOptions, logger obslog.Logger) *Manager {
	return &Manager{
		registry: registry,
		store:    store,
		runner:   runner,
		encOpts:  encOpts,
		logger:   logger,
		runtimes: make(map[string]managedRuntime),
	}
}

// StartAll loads every enabled TriggerDefinition and starts it;
// individual failures are logged and do not abort the batch (spec §4.2).
func (m *Manager) StartAll(ctx context.Context) error {
	defs, err := m.store.ListEnabledTriggerDefinitions(ctx)
	if err != nil {
		return fmt.Errorf("trigger: list enabled trigger definitions: %w", err)
	}

	for _, def := range defs {
		if err := m.startTrigger(ctx, def.ID); err != nil {
			m.logger.Error("trigger: start failed", "trigger_definition_id", def.ID, "error", err)
		}
	}
	return nil
}

// StopAll stops every managed runtime in parallel; each Stop is awaited
// with errors logged, followed by an optional Dispose.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	runtimes := make(map[string]managedRuntime, len(m.runtimes))
	for id, mr := range m.runtimes {
		runtimes[id] = mr
	}
	m.runtimes = make(map[string]managedRuntime)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for defID, mr := range runtimes {
		wg.Add(1)
		go func(defID string, mr managedRuntime) {
			defer wg.Done()
			if err := mr.runtime.Stop(ctx); err != nil {
				m.logger.Error("trigger: stop failed", "trigger_definition_id", defID, "error", err)
			}
			if disposer, ok := mr.runtime.(pluginapi.Disposer); ok {
				if err := disposer.Dispose(ctx); err != nil {
					m.logger.Warn("trigger: dispose failed", "trigger_definition_id", defID, "error", err)
				}
			}
		}(defID, mr)
	}
	wg.Wait()
}

// ReloadTrigger stops the prior runtime (if any), rereads the
// definition, and starts it if it is present and enabled.
func (m *Manager) ReloadTrigger(ctx context.Context, defID string) error {
	m.stopOne(ctx, defID)

	def, err := m.store.GetTriggerDefinition(ctx, defID)
	if err != nil {
		// Missing definition: leave it removed, not an error.
		m.logger.Warn("trigger: reload found no definition, leaving stopped", "trigger_definition_id", defID, "error", err)
		return nil
	}
	if !def.IsEnabled {
		return nil
	}
	return m.startTrigger(ctx, defID)
}

// NotifyConfigChange calls the runtime's OnConfigChange if it exposes
// one, otherwise falls back to a full reload.
func (m *Manager) NotifyConfigChange(ctx context.Context, defID string, cfg json.RawMessage) error {
	m.mu.Lock()
	mr, ok := m.runtimes[defID]
	m.mu.Unlock()
	if !ok {
		return m.ReloadTrigger(ctx, defID)
	}

	changer, ok := mr.runtime.(pluginapi.TriggerConfigChanger)
	if !ok {
		return m.ReloadTrigger(ctx, defID)
	}

	decrypted, err := pluginapi.Decrypt(cfg, m.encOpts)
	if err != nil {
		return fmt.Errorf("trigger: decrypt config for %s: %w", defID, err)
	}
	return changer.OnConfigChange(ctx, decrypted)
}

func (m *Manager) stopOne(ctx context.Context, defID string) {
	m.mu.Lock()
	mr, ok := m.runtimes[defID]
	if ok {
		delete(m.runtimes, defID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	if err := mr.runtime.Stop(ctx); err != nil {
		m.logger.Error("trigger: stop failed", "trigger_definition_id", defID, "error", err)
	}
	if disposer, ok := mr.runtime.(pluginapi.Disposer); ok {
		if err := disposer.Dispose(ctx); err != nil {
			m.logger.Warn("trigger: dispose failed", "trigger_definition_id", defID, "error", err)
		}
	}
}

// startTrigger resolves the capability, constructs services, builds the
// TriggerRuntimeContext, invokes the factory, and requires the result to
// implement TriggerRuntime — failing fast with ErrInvalidRuntime
// otherwise (spec §4.2).
func (m *Manager) startTrigger(ctx context.Context, defID string) error {
	capability, plugin, err := m.store.GetCapabilityForTrigger(ctx, defID)
	if err != nil {
		m.audit(ctx, defID, AuditStarted, "", "")
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return fmt.Errorf("trigger: resolve capability for %s: %w", defID, err)
	}

	def, err := m.store.GetTriggerDefinition(ctx, defID)
	if err != nil {
		return fmt.Errorf("trigger: load definition %s: %w", defID, err)
	}

	ref, err := m.registry.RequireTriggerByID(capability.ID)
	if err != nil {
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return err
	}

	m.audit(ctx, defID, AuditStarted, "", "")

	decryptedCfg, err := pluginapi.Decrypt(def.Config, m.encOpts)
	if err != nil {
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return fmt.Errorf("trigger: decrypt config for %s: %w", defID, err)
	}

	emit := func(ctx context.Context, payload json.RawMessage) (string, error) {
		eventID, err := m.runner.FireTriggerOnce(ctx, defID, FirePayload{Context: payload})
		if err != nil {
			m.audit(ctx, defID, AuditFailed, "", err.Error())
			return "", err
		}
		m.audit(ctx, defID, AuditSucceeded, eventID, "")
		return eventID, nil
	}

	rtCtx := pluginapi.TriggerRuntimeContext{
		DefinitionID: defID,
		Capability: pluginapi.CapabilityRef{
			PluginID:     plugin.ID,
			PluginName:   plugin.Name,
			CapabilityID: capability.ID,
			Key:          capability.Key,
			Kind:         capability.Kind,
		},
		PluginName: plugin.Name,
		Config:     decryptedCfg,
		Secrets:    nil,
		Services: pluginapi.TriggerServices{
			Logger: m.logger,
			Emit:   emit,
		},
	}

	instance, err := ref.Factory(rtCtx)
	if err != nil {
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return fmt.Errorf("trigger: factory for %s: %w", defID, err)
	}

	runtime, err := pluginapi.ValidateTriggerRuntime(capability.ID, instance)
	if err != nil {
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return err
	}

	if err := runtime.Start(ctx); err != nil {
		m.audit(ctx, defID, AuditFailed, "", err.Error())
		return fmt.Errorf("trigger: start %s: %w", defID, err)
	}

	m.mu.Lock()
	m.runtimes[defID] = managedRuntime{ref: ref, runtime: runtime}
	m.mu.Unlock()

	return nil
}

func (m *Manager) audit(ctx context.Context, defID string, phase AuditPhase, eventID, message string) {
	if err := m.store.RecordPluginTriggerAudit(ctx, TriggerAuditEntry{
		TriggerDefinitionID: defID,
		Phase:               phase,
		TriggerEventID:      eventID,
		Message:             message,
	}); err != nil {
		m.logger.Error("trigger: audit write failed", "trigger_definition_id", defID, "phase", phase, "error", err)
	}
}
