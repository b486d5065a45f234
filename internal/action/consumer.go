package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/pluginapi"
	"github.com/latchflow/latchflow/internal/queue"
)

// DefaultTimeout and DefaultConcurrency are spec §4.4's defaults: a 60s
// per-execution timeout budget and a concurrency bound of 10, overridable
// from PLUGIN_ACTION_CONCURRENCY.
const (
	DefaultTimeout     = 60 * time.Second
	DefaultConcurrency = 10
)

// Consumer is the background action executor attached to the queue.
// Grounded on AsyncWebhookProcessor's worker-pool Start/Stop, but
// generalized from a fixed pool of N worker goroutines each reading the
// channel to a single dispatch loop plus a counting semaphore — the
// FIFO waiter order spec §4.4 step 4 requires is exactly what a
// buffered-channel semaphore gives for free, without the extra
// worker-identity bookkeeping the teacher's pool needed.
type Consumer struct {
	registry    *pluginapi.Registry
	store       Store
	q           queue.Queue
	encOpts     pluginapi.EncryptOptions
	logger      obslog.Logger
	timeout     time.Duration
	concurrency int

	sem  chan struct{}
	wg   sync.WaitGroup
	stop chan struct{}
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option { return func(c *Consumer) { c.timeout = d } }

// WithConcurrency overrides DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(c *Consumer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewConsumer constructs a Consumer.
func NewConsumer(registry *pluginapi.Registry, store Store, q queue.Queue, encOpts pluginapi.EncryptOptions, logger obslog.Logger, opts ...Option) *Consumer {
	c := &Consumer{
		registry:    registry,
		store:       store,
		q:           q,
		encOpts:     encOpts,
		logger:      logger,
		timeout:     DefaultTimeout,
		concurrency: DefaultConcurrency,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.sem = make(chan struct{}, c.concurrency)
	return c
}

// Start launches the dispatch loop in a goroutine and returns
// immediately; call Stop to shut it down.
func (c *Consumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.dispatchLoop(ctx)
}

// Stop signals the dispatch loop to exit and waits for in-flight
// executions to finish acquiring/releasing their semaphore slot.
func (c *Consumer) Stop() {
	close(c.stop)
	c.wg.Wait()
}

func (c *Consumer) dispatchLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case msg, ok := <-c.q.Consume():
			if !ok {
				return
			}
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			}
			c.wg.Add(1)
			go func(msg queue.ActionMessage) {
				defer c.wg.Done()
				defer func() { <-c.sem }()
				c.handle(ctx, msg)
			}(msg)
		}
	}
}

// handle implements spec §4.4 steps 1-7 for a single ActionMessage.
func (c *Consumer) handle(ctx context.Context, msg queue.ActionMessage) {
	invocationID, err := c.store.CreateActionInvocation(ctx, invocationFromMessage(msg))
	if err != nil {
		c.logger.Error("action: create invocation failed, message dropped for queue-level retry", "action_definition_id", msg.ActionDefinitionID, "error", err)
		return
	}

	def, err := c.store.GetActionDefinition(ctx, msg.ActionDefinitionID)
	if err != nil || !def.IsEnabled {
		result, _ := json.Marshal(map[string]string{"reason": "ACTION_DISABLED"})
		c.finalize(ctx, invocationID, model.InvocationSkippedDisabled, result, nil)
		return
	}

	capability, plugin, err := c.store.GetCapabilityForAction(ctx, msg.ActionDefinitionID)
	if err != nil {
		c.audit(ctx, invocationID, AuditFailed, err.Error())
		c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(err), nil)
		return
	}

	ref, err := c.registry.RequireActionByID(capability.ID)
	if err != nil {
		c.audit(ctx, invocationID, AuditFailed, err.Error())
		c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(err), nil)
		return
	}

	decryptedCfg, err := pluginapi.Decrypt(def.Config, c.encOpts)
	if err != nil {
		c.audit(ctx, invocationID, AuditFailed, err.Error())
		c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(err), nil)
		return
	}

	c.audit(ctx, invocationID, AuditStarted, fmt.Sprintf("plugin=%s capability=%s", plugin.Name, capability.Key))

	instance, err := ref.Factory(capability, decryptedCfg, nil)
	if err != nil {
		c.audit(ctx, invocationID, AuditFailed, err.Error())
		c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(err), nil)
		return
	}
	runtime, err := pluginapi.ValidateActionRuntime(capability.ID, instance)
	if err != nil {
		c.audit(ctx, invocationID, AuditFailed, err.Error())
		c.finalize(ctx, invocationID, model.InvocationFailedPermanent, errResult(err), nil)
		return
	}

	input := pluginapi.ActionInput{
		Config:  decryptedCfg,
		Secrets: nil,
		Payload: msg.Context,
		Invocation: pluginapi.InvocationRef{
			ID:                 invocationID,
			ActionDefinitionID: msg.ActionDefinitionID,
			Attempt:            msg.Attempt,
		},
	}

	result, execErr := c.executeWithTimeout(ctx, runtime, input)

	if disposer, ok := runtime.(pluginapi.Disposer); ok {
		if derr := disposer.Dispose(ctx); derr != nil {
			c.logger.Warn("action: dispose failed", "invocation_id", invocationID, "error", derr)
		}
	}

	c.classifyAndFinalize(ctx, invocationID, msg, result, execErr)
}

// executeWithTimeout races runtime.Execute against c.timeout, producing
// the synthetic ACTION_TIMEOUT fatal error on expiry (spec §4.4 step 5).
func (c *Consumer) executeWithTimeout(ctx context.Context, runtime pluginapi.ActionRuntime, input pluginapi.ActionInput) (pluginapi.ActionResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		result pluginapi.ActionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := runtime.Execute(execCtx, input)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-execCtx.Done():
		return pluginapi.ActionResult{}, pluginapi.ErrActionTimeout
	}
}

func invocationFromMessage(msg queue.ActionMessage) model.ActionInvocation {
	inv := model.ActionInvocation{
		ActionDefinitionID: msg.ActionDefinitionID,
		Status:             model.InvocationPending,
		Attempt:            msg.Attempt,
	}
	if msg.TriggerEventID != "" {
		id := msg.TriggerEventID
		inv.TriggerEventID = &id
	}
	if msg.ManualInvokerID != "" {
		id := msg.ManualInvokerID
		inv.ManualInvokerID = &id
	}
	return inv
}

func errResult(err error) []byte {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return b
}
