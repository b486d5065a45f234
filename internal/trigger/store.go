// Package trigger implements the trigger-runtime manager and runner of
// spec §4.2/§4.3: keeping enabled trigger runtimes alive, firing them,
// and resolving pipeline fan-out into enqueued action messages. Grounded
// on internal/core/processing.AsyncWebhookProcessor's Start/Stop/worker
// lifecycle (manager) and its sequential per-job processing loop
// (runner's fan-out resolution).
package trigger

import (
	"context"

	"github.com/latchflow/latchflow/internal/model"
)

// Store is the persistence surface the trigger subsystem needs. A
// concrete implementation lives in internal/store, backed by Postgres.
type Store interface {
	ListEnabledTriggerDefinitions(ctx context.Context) ([]model.TriggerDefinition, error)
	GetTriggerDefinition(ctx context.Context, id string) (model.TriggerDefinition, error)
	GetCapabilityForTrigger(ctx context.Context, triggerDefinitionID string) (model.PluginCapability, model.Plugin, error)

	// CreateTriggerEvent persists an immutable TriggerEvent and returns
	// its generated id.
	CreateTriggerEvent(ctx context.Context, triggerDefinitionID string, eventContext []byte) (string, error)

	// ResolveFanOut returns the ordered set of action definitions to
	// invoke for a firing of triggerDefinitionID: enabled PipelineTrigger
	// rows on enabled pipelines, each contributing their enabled
	// PipelineSteps ordered by sortOrder, tie-broken by id.
	ResolveFanOut(ctx context.Context, triggerDefinitionID string) ([]FanOutStep, error)

	// RecordPluginTriggerAudit appends one audit row for a trigger
	// lifecycle phase (spec §4.2's STARTED/SUCCEEDED/FAILED contract).
	RecordPluginTriggerAudit(ctx context.Context, entry TriggerAuditEntry) error
}

// FanOutStep is one action definition resolved for a trigger firing,
// already ordered per spec §4.3.
type FanOutStep struct {
	ActionDefinitionID string
	PipelineID         string
	PipelineSortOrder  int
	StepSortOrder      int
}

// AuditPhase is the lifecycle phase recorded for each trigger emit.
type AuditPhase string

const (
	AuditStarted   AuditPhase = "STARTED"
	AuditSucceeded AuditPhase = "SUCCEEDED"
	AuditFailed    AuditPhase = "FAILED"
)

// TriggerAuditEntry is one recordPluginTriggerAudit row.
type TriggerAuditEntry struct {
	TriggerDefinitionID string
	Phase               AuditPhase
	TriggerEventID      string // set on SUCCEEDED
	Message             string // set on FAILED
}
