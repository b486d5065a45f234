package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/queue"
)

// FirePayload is the input to FireTriggerOnce (spec §4.3).
type FirePayload struct {
	Context      json.RawMessage
	Metadata     json.RawMessage
	ScheduledFor *string
}

// Runner implements fireTriggerOnce: persist the event, resolve the
// pipeline fan-out, and enqueue one ActionMessage per resolved step.
// Enqueue failures never roll back the persisted TriggerEvent — it
// remains evidence that the trigger fired even if fan-out was partial.
type Runner struct {
	store  Store
	queue  queue.Queue
	logger obslog.Logger
}

// NewRunner constructs a Runner.
func NewRunner(store Store, q queue.Queue, logger obslog.Logger) *Runner {
	return &Runner{store: store, queue: q, logger: logger}
}

// FireTriggerOnce executes spec §4.3's algorithm for one trigger
// firing and returns the persisted TriggerEvent's id.
func (r *Runner) FireTriggerOnce(ctx context.Context, triggerDefinitionID string, payload FirePayload) (string, error) {
	eventCtx := payload.Context
	if eventCtx == nil {
		eventCtx = json.RawMessage("null")
	}

	eventID, err := r.store.CreateTriggerEvent(ctx, triggerDefinitionID, eventCtx)
	if err != nil {
		return "", fmt.Errorf("trigger: persist trigger event: %w", err)
	}

	steps, err := r.store.ResolveFanOut(ctx, triggerDefinitionID)
	if err != nil {
		// The event is already durable; a fan-out resolution failure is
		// logged, not propagated as a firing failure.
		r.logger.Error("trigger: resolve fan-out failed", "trigger_definition_id", triggerDefinitionID, "event_id", eventID, "error", err)
		return eventID, nil
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].PipelineSortOrder != steps[j].PipelineSortOrder {
			return steps[i].PipelineSortOrder < steps[j].PipelineSortOrder
		}
		if steps[i].StepSortOrder != steps[j].StepSortOrder {
			return steps[i].StepSortOrder < steps[j].StepSortOrder
		}
		return steps[i].ActionDefinitionID < steps[j].ActionDefinitionID
	})

	for _, step := range steps {
		msg := queue.ActionMessage{
			ActionDefinitionID: step.ActionDefinitionID,
			TriggerEventID:     eventID,
			Context:            eventCtx,
			Attempt:            1,
		}
		if err := r.queue.Enqueue(ctx, msg); err != nil {
			// Per spec §4.3: enqueue failures do not roll back prior
			// enqueues; the event remains persisted as evidence.
			r.logger.Error("trigger: enqueue action failed",
				"trigger_definition_id", triggerDefinitionID,
				"event_id", eventID,
				"action_definition_id", step.ActionDefinitionID,
				"error", err)
			continue
		}
	}

	return eventID, nil
}
