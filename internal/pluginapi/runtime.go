// Package pluginapi implements the plugin registry and runtime contracts
// of spec §4.1: registration of trigger/action capabilities, the
// TriggerRuntime/ActionRuntime sum type, and config encryption as a
// pluggable transformation. The registry stores factories without
// calling them; ValidateTriggerRuntime and ValidateActionRuntime check
// an instance's shape when internal/trigger or internal/action
// constructs it, not at registration. Grounded on the teacher's
// internal/infrastructure/publishing.DefaultFormatRegistry (map+RWMutex
// registry with Register/Get/Supports/List/Count), reworked from a
// single-kind format registry into the two-kind capability registry this
// spec requires.
package pluginapi

import (
	"context"
	"encoding/json"
)

// TriggerRuntime is the required shape of a trigger plugin instance
// (spec §4.1). OnConfigChange and Dispose are optional; implementations
// that support them additionally implement TriggerConfigChanger and/or
// Disposer.
type TriggerRuntime interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TriggerConfigChanger is an optional TriggerRuntime extension; the
// manager calls OnConfigChange instead of a stop/start reload when a
// runtime implements it.
type TriggerConfigChanger interface {
	OnConfigChange(ctx context.Context, cfg json.RawMessage) error
}

// ActionRuntime is the required shape of an action plugin instance.
type ActionRuntime interface {
	Execute(ctx context.Context, input ActionInput) (ActionResult, error)
}

// Disposer is an optional extension implemented by either runtime kind;
// dispose errors are logged, never fatal (spec §4.4 step 6).
type Disposer interface {
	Dispose(ctx context.Context) error
}

// ActionInput is the argument passed to ActionRuntime.Execute (spec
// §4.4 step 5). Secrets is always nil until a secrets backend exists.
type ActionInput struct {
	Config     json.RawMessage
	Secrets    json.RawMessage
	Payload    json.RawMessage
	Invocation InvocationRef
}

// InvocationRef identifies the in-flight ActionInvocation to a plugin,
// for plugins that want to log or correlate by invocation id.
type InvocationRef struct {
	ID                 string
	ActionDefinitionID string
	Attempt            int
}

// RetryRequest is the {retry:{delayMs?}} outcome shape of spec §4.4
// step 7.
type RetryRequest struct {
	DelayMs *int64
}

// ActionResult is the outcome a plugin's Execute returns. Exactly one of
// Retry, Success, or Err (returned separately) applies.
type ActionResult struct {
	Retry   *RetryRequest
	Success json.RawMessage
}

// TriggerRuntimeContext is passed to a trigger factory (spec §4.2).
type TriggerRuntimeContext struct {
	DefinitionID string
	Capability   CapabilityRef
	PluginName   string
	Config       json.RawMessage
	Secrets      json.RawMessage
	Services     TriggerServices
}

// TriggerServices are the services internal/trigger's Manager builds for
// each runtime it starts: a logger and an emit closure that calls the
// manager's Runner.FireTriggerOnce.
type TriggerServices struct {
	Logger Logger
	Emit   func(ctx context.Context, payload json.RawMessage) (string, error)
}

// RuntimeServices is the services shape for action execution: a logger
// only, no emit. internal/action does not construct it.
type RuntimeServices struct {
	Logger Logger
}

// Logger is the minimal logging surface handed to plugins, so plugin
// code never imports log/slog directly.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
