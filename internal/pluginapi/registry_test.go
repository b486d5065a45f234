package pluginapi_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/pluginapi"
)

type fakeTriggerRuntime struct{}

func (fakeTriggerRuntime) Start(context.Context) error { return nil }
func (fakeTriggerRuntime) Stop(context.Context) error  { return nil }

type fakeActionRuntime struct{}

func (fakeActionRuntime) Execute(context.Context, pluginapi.ActionInput) (pluginapi.ActionResult, error) {
	return pluginapi.ActionResult{}, nil
}

func TestRegisterAndRequireTrigger(t *testing.T) {
	reg := pluginapi.NewRegistry()
	cap := pluginapi.CapabilityRef{CapabilityID: "cap-1", PluginName: "interval", Key: "tick", Kind: model.CapabilityTrigger}
	reg.RegisterTrigger(pluginapi.TriggerRef{
		Capability: cap,
		Factory: func(pluginapi.TriggerRuntimeContext) (any, error) {
			return fakeTriggerRuntime{}, nil
		},
	})

	ref, err := reg.RequireTriggerByID("cap-1")
	require.NoError(t, err)
	assert.Equal(t, "interval", ref.Capability.PluginName)

	instance, err := ref.Factory(pluginapi.TriggerRuntimeContext{})
	require.NoError(t, err)
	rt, err := pluginapi.ValidateTriggerRuntime("cap-1", instance)
	require.NoError(t, err)
	assert.NoError(t, rt.Start(context.Background()))
}

func TestRequireTriggerByIDNotFound(t *testing.T) {
	reg := pluginapi.NewRegistry()
	_, err := reg.RequireTriggerByID("missing")
	var notFound *pluginapi.ErrCapabilityNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.CapabilityID)
}

func TestValidateTriggerRuntimeRejectsInvalidShape(t *testing.T) {
	_, err := pluginapi.ValidateTriggerRuntime("cap-1", fakeActionRuntime{})
	var invalid *pluginapi.ErrInvalidRuntime
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, model.CapabilityTrigger, invalid.Kind)
}

func TestValidateActionRuntimeAcceptsValidShape(t *testing.T) {
	rt, err := pluginapi.ValidateActionRuntime("cap-2", fakeActionRuntime{})
	require.NoError(t, err)
	_, err = rt.Execute(context.Background(), pluginapi.ActionInput{})
	require.NoError(t, err)
}

func TestListCapabilitiesIsSortedAndCombined(t *testing.T) {
	reg := pluginapi.NewRegistry()
	reg.RegisterTrigger(pluginapi.TriggerRef{Capability: pluginapi.CapabilityRef{CapabilityID: "b"}})
	reg.RegisterAction(pluginapi.ActionRef{Capability: pluginapi.CapabilityRef{CapabilityID: "a"}})

	caps := reg.ListCapabilities()
	require.Len(t, caps, 2)
	assert.Equal(t, "a", caps[0].CapabilityID)
	assert.Equal(t, "b", caps[1].CapabilityID)
}
