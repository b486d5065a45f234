// Package action implements the action consumer of spec §4.4: a
// bounded-concurrency, timeout-racing executor over the action queue
// that manages the ActionInvocation state machine. Grounded on
// internal/core/processing.AsyncWebhookProcessor for the semaphore/
// worker-pool/graceful-stop shape, and on
// internal/core/resilience.{RetryPolicy,classifyError} for backoff and
// retryable/permanent error classification.
package action

import (
	"context"

	"github.com/latchflow/latchflow/internal/model"
)

// Store is the persistence surface the action subsystem needs.
type Store interface {
	CreateActionInvocation(ctx context.Context, inv model.ActionInvocation) (string, error)
	GetActionDefinition(ctx context.Context, id string) (model.ActionDefinition, error)
	GetCapabilityForAction(ctx context.Context, actionDefinitionID string) (model.PluginCapability, model.Plugin, error)

	FinalizeInvocation(ctx context.Context, invocationID string, status model.InvocationStatus, result []byte, retryAt *int64) error

	RecordPluginActionAudit(ctx context.Context, entry ActionAuditEntry) error
}

// AuditPhase is the lifecycle phase recorded for each action execution.
type AuditPhase string

const (
	AuditStarted   AuditPhase = "STARTED"
	AuditSucceeded AuditPhase = "SUCCEEDED"
	AuditRetry     AuditPhase = "RETRY"
	AuditFailed    AuditPhase = "FAILED"
)

// ActionAuditEntry is one recordPluginActionAudit row.
type ActionAuditEntry struct {
	ActionInvocationID string
	Phase              AuditPhase
	Message            string
}
