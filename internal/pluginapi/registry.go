package pluginapi

import (
	"fmt"
	"sort"
	"sync"

	"github.com/latchflow/latchflow/internal/model"
)

// CapabilityRef identifies the plugin capability a runtime implements.
type CapabilityRef struct {
	PluginID     string
	PluginName   string
	CapabilityID string
	Key          string
	Kind         model.CapabilityKind
}

// TriggerFactory constructs a trigger runtime instance from its context.
// It returns any rather than TriggerRuntime so that registration can
// validate the shape explicitly and report INVALID_RUNTIME, matching the
// spec's duck-typed source where the shape is checked, not assumed.
type TriggerFactory func(ctx TriggerRuntimeContext) (any, error)

// ActionFactory constructs an action runtime instance.
type ActionFactory func(cap CapabilityRef, config, secrets []byte) (any, error)

// TriggerRef is the registration record for a trigger capability.
type TriggerRef struct {
	Capability CapabilityRef
	Factory    TriggerFactory
}

// ActionRef is the registration record for an action capability.
type ActionRef struct {
	Capability CapabilityRef
	Factory    ActionFactory
}

// ErrCapabilityNotFound is returned by RequireTriggerByID/RequireActionByID
// when the capability id is unregistered (spec §4.1's CAPABILITY_NOT_FOUND).
type ErrCapabilityNotFound struct {
	CapabilityID string
}

func (e *ErrCapabilityNotFound) Error() string {
	return fmt.Sprintf("pluginapi: capability %q not found: CAPABILITY_NOT_FOUND", e.CapabilityID)
}

// ErrInvalidRuntime is returned when a factory's return value does not
// implement the runtime interface its kind requires (spec §4.2's
// INVALID_RUNTIME).
type ErrInvalidRuntime struct {
	CapabilityID string
	Kind         model.CapabilityKind
}

func (e *ErrInvalidRuntime) Error() string {
	return fmt.Sprintf("pluginapi: capability %q factory did not produce a valid %s runtime: INVALID_RUNTIME", e.CapabilityID, e.Kind)
}

// Registry indexes capabilities by capabilityId and by (pluginName, key),
// per spec §4.1. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	triggers map[string]TriggerRef // keyed by CapabilityID
	actions  map[string]ActionRef
	byName   map[string]string // "pluginName/key" -> CapabilityID
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		triggers: make(map[string]TriggerRef),
		actions:  make(map[string]ActionRef),
		byName:   make(map[string]string),
	}
}

func nameKey(pluginName, key string) string {
	return pluginName + "/" + key
}

// RegisterTrigger indexes a trigger capability. It does not invoke the
// factory; factory shape is validated lazily at StartTrigger time
// (spec §4.2), since constructing a runtime requires a live context.
func (r *Registry) RegisterTrigger(ref TriggerRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggers[ref.Capability.CapabilityID] = ref
	r.byName[nameKey(ref.Capability.PluginName, ref.Capability.Key)] = ref.Capability.CapabilityID
}

// RegisterAction indexes an action capability.
func (r *Registry) RegisterAction(ref ActionRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[ref.Capability.CapabilityID] = ref
	r.byName[nameKey(ref.Capability.PluginName, ref.Capability.Key)] = ref.Capability.CapabilityID
}

// RequireTriggerByID resolves a registered trigger capability by id.
func (r *Registry) RequireTriggerByID(id string) (TriggerRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.triggers[id]
	if !ok {
		return TriggerRef{}, &ErrCapabilityNotFound{CapabilityID: id}
	}
	return ref, nil
}

// RequireActionByID resolves a registered action capability by id.
func (r *Registry) RequireActionByID(id string) (ActionRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.actions[id]
	if !ok {
		return ActionRef{}, &ErrCapabilityNotFound{CapabilityID: id}
	}
	return ref, nil
}

// ValidateTriggerRuntime checks that instance implements TriggerRuntime,
// returning ErrInvalidRuntime (INVALID_RUNTIME) otherwise.
func ValidateTriggerRuntime(capabilityID string, instance any) (TriggerRuntime, error) {
	rt, ok := instance.(TriggerRuntime)
	if !ok {
		return nil, &ErrInvalidRuntime{CapabilityID: capabilityID, Kind: model.CapabilityTrigger}
	}
	return rt, nil
}

// ValidateActionRuntime checks that instance implements ActionRuntime,
// returning ErrInvalidRuntime (INVALID_RUNTIME) otherwise.
func ValidateActionRuntime(capabilityID string, instance any) (ActionRuntime, error) {
	rt, ok := instance.(ActionRuntime)
	if !ok {
		return nil, &ErrInvalidRuntime{CapabilityID: capabilityID, Kind: model.CapabilityAction}
	}
	return rt, nil
}

// ListCapabilities returns every registered capability ref, sorted by
// capability id for deterministic iteration (e.g. admin API listings).
func (r *Registry) ListCapabilities() []CapabilityRef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CapabilityRef, 0, len(r.triggers)+len(r.actions))
	for _, ref := range r.triggers {
		out = append(out, ref.Capability)
	}
	for _, ref := range r.actions {
		out = append(out, ref.Capability)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CapabilityID < out[j].CapabilityID })
	return out
}
