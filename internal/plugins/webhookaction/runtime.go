package webhookaction

import (
	"context"
	"errors"
	"fmt"

	"github.com/latchflow/latchflow/internal/pluginapi"
)

// PluginName is the name this capability registers under.
const PluginName = "webhook"

// CapabilityKey is the action key within PluginName.
const CapabilityKey = "send"

// Runtime is a pluginapi.ActionRuntime that POSTs an invocation's
// payload to an outbound HTTPS endpoint, with retry, circuit breaking,
// and a choice of auth strategies. One Runtime is constructed per
// capability config by NewFactory's returned pluginapi.ActionFactory,
// and its circuit breaker state is therefore shared across every
// invocation of that one action definition, not global.
type Runtime struct {
	cfg     Config
	client  *httpClient
	breaker *circuitBreaker
	logger  pluginapi.Logger
}

var _ pluginapi.ActionRuntime = (*Runtime)(nil)

// NewFactory returns a pluginapi.ActionFactory that builds a Runtime
// per capability config. logger is supplied once at plugin registration
// (see cmd/server wiring), since pluginapi.RuntimeServices is not
// threaded through ActionInput today.
func NewFactory(logger pluginapi.Logger) pluginapi.ActionFactory {
	return func(cap pluginapi.CapabilityRef, config, secrets []byte) (any, error) {
		cfg, err := ParseConfig(config)
		if err != nil {
			return nil, fmt.Errorf("webhookaction: parse config: %w", err)
		}
		if len(secrets) > 0 {
			var secretAuth AuthConfig
			if err := parseSecretAuth(secrets, &secretAuth); err != nil {
				return nil, fmt.Errorf("webhookaction: parse secrets: %w", err)
			}
			cfg.Auth = mergeAuth(cfg.Auth, secretAuth)
		}
		if err := validateConfig(cfg); err != nil {
			return nil, fmt.Errorf("webhookaction: invalid config: %w", err)
		}

		return &Runtime{
			cfg:     cfg,
			client:  newHTTPClient(cfg.Timeout),
			breaker: newCircuitBreaker(defaultCircuitBreakerConfig),
			logger:  logger,
		}, nil
	}
}

// Execute sends input.Payload to the configured endpoint, translating
// every failure into a *pluginapi.ServiceError so the action consumer's
// classifyAndFinalize can decide retry vs. permanent failure.
func (r *Runtime) Execute(ctx context.Context, input pluginapi.ActionInput) (pluginapi.ActionResult, error) {
	if !r.breaker.CanAttempt() {
		return pluginapi.ActionResult{}, &pluginapi.ServiceError{
			Kind:    pluginapi.KindRetryable,
			Code:    "WEBHOOK_CIRCUIT_OPEN",
			Message: "webhook endpoint circuit breaker is open",
		}
	}

	result, err := r.client.send(ctx, r.cfg, input.Payload)
	if err != nil {
		r.breaker.RecordFailure()
		var se *sendError
		if errors.As(err, &se) {
			if r.logger != nil {
				r.logger.Warn("webhook send failed", "invocation", input.Invocation.ID, "class", se.class.code())
			}
			return pluginapi.ActionResult{}, se.serviceError()
		}
		return pluginapi.ActionResult{}, &pluginapi.ServiceError{
			Kind:    pluginapi.KindRetryable,
			Code:    "WEBHOOK_UNKNOWN",
			Message: err.Error(),
		}
	}

	r.breaker.RecordSuccess()
	if r.logger != nil {
		r.logger.Info("webhook sent", "invocation", input.Invocation.ID, "status", result.StatusCode)
	}

	return pluginapi.ActionResult{Success: result.Body}, nil
}
