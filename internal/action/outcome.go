package action

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/pluginapi"
	"github.com/latchflow/latchflow/internal/queue"
)

// classifyAndFinalize implements spec §4.4 step 7: resolve the
// plugin's outcome into a terminal or retrying ActionInvocation state,
// writing the matching audit phase.
func (c *Consumer) classifyAndFinalize(ctx context.Context, invocationID string, msg queue.ActionMessage, result pluginapi.ActionResult, execErr error) {
	if execErr == nil {
		if result.Retry != nil {
			c.scheduleRetry(ctx, invocationID, msg, retryDelay(result.Retry.DelayMs, msg.Attempt))
			return
		}
		c.audit(ctx, invocationID, AuditSucceeded, "")
		c.finalize(ctx, invocationID, model.InvocationSuccess, successResult(result.Success), nil)
		return
	}

	var svcErr *pluginapi.ServiceError
	if errors.As(execErr, &svcErr) {
		switch svcErr.Kind {
		case pluginapi.KindRetryable, pluginapi.KindRateLimit:
			c.scheduleRetry(ctx, invocationID, msg, retryDelay(nil, msg.Attempt))
			return
		case pluginapi.KindPermission, pluginapi.KindValidation, pluginapi.KindFatal:
			c.audit(ctx, invocationID, AuditFailed, svcErr.Error())
			c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(svcErr), nil)
			return
		}
	}

	// Any other (unclassified) error: FAILED, not FAILED_PERMANENT —
	// the invocation may still be retried manually.
	c.audit(ctx, invocationID, AuditFailed, execErr.Error())
	c.finalize(ctx, invocationID, model.InvocationFailed, errResult(execErr), nil)
}

func retryDelay(delayMs *int64, attempt int) time.Duration {
	if delayMs != nil {
		d := *delayMs
		if d < 0 {
			d = 0
		}
		return time.Duration(d) * time.Millisecond
	}
	return Backoff(attempt)
}

// scheduleRetry marks the invocation RETRYING and schedules re-enqueue
// of a new ActionMessage with attempt+1 after delay, per spec §4.4's
// "Retry enqueue is delayed by setTimeout(delay)" contract.
func (c *Consumer) scheduleRetry(ctx context.Context, invocationID string, msg queue.ActionMessage, delay time.Duration) {
	retryAt := time.Now().Add(delay).UnixMilli()
	c.audit(ctx, invocationID, AuditRetry, "")
	c.finalize(ctx, invocationID, model.InvocationRetrying, nil, &retryAt)

	nextAttempt := msg.Attempt + 1
	next := queue.ActionMessage{
		ActionDefinitionID: msg.ActionDefinitionID,
		TriggerEventID:     msg.TriggerEventID,
		ManualInvokerID:    msg.ManualInvokerID,
		Context:            msg.Context,
		Attempt:            nextAttempt,
	}

	// Scheduled independently of c.wg: a pending retry must not block
	// Consumer.Stop from returning promptly during shutdown.
	time.AfterFunc(delay, func() {
		enqueueCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.q.Enqueue(enqueueCtx, next); err != nil {
			c.logger.Error("action: retry re-enqueue failed", "invocation_id", invocationID, "error", err)
		}
	})
}

func (c *Consumer) finalize(ctx context.Context, invocationID string, status model.InvocationStatus, result []byte, retryAtMs *int64) {
	invocationsTotal.WithLabelValues(string(status)).Inc()
	if err := c.store.FinalizeInvocation(ctx, invocationID, status, result, retryAtMs); err != nil {
		c.logger.Error("action: finalize invocation failed", "invocation_id", invocationID, "status", status, "error", err)
	}
}

func (c *Consumer) audit(ctx context.Context, invocationID string, phase AuditPhase, message string) {
	if err := c.store.RecordPluginActionAudit(ctx, ActionAuditEntry{
		ActionInvocationID: invocationID,
		Phase:              phase,
		Message:            message,
	}); err != nil {
		c.logger.Error("action: audit write failed", "invocation_id", invocationID, "phase", phase, "error", err)
	}
}

func successResult(v json.RawMessage) []byte {
	if v == nil {
		return json.RawMessage("null")
	}
	return v
}
