package store

import (
	"context"
	"encoding/json"

	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/trigger"
)

var _ trigger.Store = (*Store)(nil)

// ListEnabledTriggerDefinitions implements trigger.Store.
func (s *Store) ListEnabledTriggerDefinitions(ctx context.Context) ([]model.TriggerDefinition, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, capability_id, name, config, is_enabled, created_at, updated_at, created_by, updated_by
		FROM trigger_definitions
		WHERE is_enabled
		ORDER BY id`)
	if err != nil {
		return nil, wrap("list enabled trigger definitions", err)
	}
	defer rows.Close()

	var out []model.TriggerDefinition
	for rows.Next() {
		var d model.TriggerDefinition
		if err := rows.Scan(&d.ID, &d.CapabilityID, &d.Name, &d.Config, &d.IsEnabled, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy); err != nil {
			return nil, wrap("scan trigger definition", err)
		}
		out = append(out, d)
	}
	return out, wrap("iterate trigger definitions", rows.Err())
}

// GetTriggerDefinition implements trigger.Store.
func (s *Store) GetTriggerDefinition(ctx context.Context, id string) (model.TriggerDefinition, error) {
	var d model.TriggerDefinition
	err := s.conn.QueryRow(ctx, `
		SELECT id, capability_id, name, config, is_enabled, created_at, updated_at, created_by, updated_by
		FROM trigger_definitions WHERE id = $1`, id,
	).Scan(&d.ID, &d.CapabilityID, &d.Name, &d.Config, &d.IsEnabled, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy)
	if err != nil {
		return model.TriggerDefinition{}, wrap("get trigger definition", mapRowErr(err))
	}
	return d, nil
}

// GetCapabilityForTrigger implements trigger.Store.
func (s *Store) GetCapabilityForTrigger(ctx context.Context, triggerDefinitionID string) (model.PluginCapability, model.Plugin, error) {
	var cap model.PluginCapability
	var plugin model.Plugin
	err := s.conn.QueryRow(ctx, `
		SELECT c.id, c.plugin_id, c.kind, c.key, c.display_name, c.config_schema, c.is_enabled,
		       p.id, p.name, p.version, p.description, p.created_at
		FROM trigger_definitions td
		JOIN plugin_capabilities c ON c.id = td.capability_id
		JOIN plugins p ON p.id = c.plugin_id
		WHERE td.id = $1`, triggerDefinitionID,
	).Scan(
		&cap.ID, &cap.PluginID, &cap.Kind, &cap.Key, &cap.DisplayName, &cap.ConfigSchema, &cap.IsEnabled,
		&plugin.ID, &plugin.Name, &plugin.Version, &plugin.Description, &plugin.CreatedAt,
	)
	if err != nil {
		return model.PluginCapability{}, model.Plugin{}, wrap("get capability for trigger", mapRowErr(err))
	}
	return cap, plugin, nil
}

// CreateTriggerEvent implements trigger.Store.
func (s *Store) CreateTriggerEvent(ctx context.Context, triggerDefinitionID string, eventContext []byte) (string, error) {
	var id string
	err := s.conn.QueryRow(ctx, `
		INSERT INTO trigger_events (trigger_definition_id, context)
		VALUES ($1, $2)
		RETURNING id`, triggerDefinitionID, json.RawMessage(eventContext),
	).Scan(&id)
	if err != nil {
		return "", wrap("create trigger event", err)
	}
	return id, nil
}

// ResolveFanOut implements trigger.Store: enabled PipelineTrigger rows
// on enabled Pipelines, each contributing their enabled PipelineSteps
// ordered by (pipelineTrigger.sortOrder, step.sortOrder, step.id).
func (s *Store) ResolveFanOut(ctx context.Context, triggerDefinitionID string) ([]trigger.FanOutStep, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ps.action_id, p.id, pt.sort_order, ps.sort_order
		FROM pipeline_triggers pt
		JOIN pipelines p ON p.id = pt.pipeline_id AND p.is_enabled
		JOIN pipeline_steps ps ON ps.pipeline_id = p.id AND ps.is_enabled
		WHERE pt.trigger_id = $1 AND pt.is_enabled
		ORDER BY pt.sort_order, ps.sort_order, ps.id`, triggerDefinitionID)
	if err != nil {
		return nil, wrap("resolve fan out", err)
	}
	defer rows.Close()

	var out []trigger.FanOutStep
	for rows.Next() {
		var step trigger.FanOutStep
		if err := rows.Scan(&step.ActionDefinitionID, &step.PipelineID, &step.PipelineSortOrder, &step.StepSortOrder); err != nil {
			return nil, wrap("scan fan out step", err)
		}
		out = append(out, step)
	}
	return out, wrap("iterate fan out", rows.Err())
}

// RecordPluginTriggerAudit implements trigger.Store.
func (s *Store) RecordPluginTriggerAudit(ctx context.Context, entry trigger.TriggerAuditEntry) error {
	var eventID any
	if entry.TriggerEventID != "" {
		eventID = entry.TriggerEventID
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO trigger_audit (trigger_definition_id, phase, trigger_event_id, message)
		VALUES ($1, $2, $3, $4)`,
		entry.TriggerDefinitionID, entry.Phase, eventID, entry.Message)
	return wrap("record trigger audit", err)
}
