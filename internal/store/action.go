package store

import (
	"context"

	"github.com/latchflow/latchflow/internal/action"
	"github.com/latchflow/latchflow/internal/model"
)

var _ action.Store = (*Store)(nil)

// CreateActionInvocation implements action.Store.
func (s *Store) CreateActionInvocation(ctx context.Context, inv model.ActionInvocation) (string, error) {
	var id string
	err := s.conn.QueryRow(ctx, `
		INSERT INTO action_invocations
			(action_definition_id, trigger_event_id, manual_invoker_id, status, attempt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		inv.ActionDefinitionID, inv.TriggerEventID, inv.ManualInvokerID, inv.Status, inv.Attempt,
	).Scan(&id)
	if err != nil {
		return "", wrap("create action invocation", err)
	}
	return id, nil
}

// GetActionDefinition implements action.Store.
func (s *Store) GetActionDefinition(ctx context.Context, id string) (model.ActionDefinition, error) {
	var d model.ActionDefinition
	err := s.conn.QueryRow(ctx, `
		SELECT id, capability_id, name, config, is_enabled, created_at, updated_at, created_by, updated_by
		FROM action_definitions WHERE id = $1`, id,
	).Scan(&d.ID, &d.CapabilityID, &d.Name, &d.Config, &d.IsEnabled, &d.CreatedAt, &d.UpdatedAt, &d.CreatedBy, &d.UpdatedBy)
	if err != nil {
		return model.ActionDefinition{}, wrap("get action definition", mapRowErr(err))
	}
	return d, nil
}

// GetCapabilityForAction implements action.Store.
func (s *Store) GetCapabilityForAction(ctx context.Context, actionDefinitionID string) (model.PluginCapability, model.Plugin, error) {
	var cap model.PluginCapability
	var plugin model.Plugin
	err := s.conn.QueryRow(ctx, `
		SELECT c.id, c.plugin_id, c.kind, c.key, c.display_name, c.config_schema, c.is_enabled,
		       p.id, p.name, p.version, p.description, p.created_at
		FROM action_definitions ad
		JOIN plugin_capabilities c ON c.id = ad.capability_id
		JOIN plugins p ON p.id = c.plugin_id
		WHERE ad.id = $1`, actionDefinitionID,
	).Scan(
		&cap.ID, &cap.PluginID, &cap.Kind, &cap.Key, &cap.DisplayName, &cap.ConfigSchema, &cap.IsEnabled,
		&plugin.ID, &plugin.Name, &plugin.Version, &plugin.Description, &plugin.CreatedAt,
	)
	if err != nil {
		return model.PluginCapability{}, model.Plugin{}, wrap("get capability for action", mapRowErr(err))
	}
	return cap, plugin, nil
}

// FinalizeInvocation implements action.Store.
func (s *Store) FinalizeInvocation(ctx context.Context, invocationID string, status model.InvocationStatus, result []byte, retryAt *int64) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE action_invocations
		SET status = $2,
		    result = $3,
		    retry_at = CASE WHEN $4::bigint IS NULL THEN NULL ELSE to_timestamp($4::bigint / 1000.0) END,
		    completed_at = CASE WHEN $2 IN ('SUCCESS', 'FAILED_PERMANENT') THEN now() ELSE completed_at END
		WHERE id = $1`,
		invocationID, status, result, retryAt)
	return wrap("finalize invocation", err)
}

// RecordPluginActionAudit implements action.Store.
func (s *Store) RecordPluginActionAudit(ctx context.Context, entry action.ActionAuditEntry) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO action_audit (action_invocation_id, phase, message)
		VALUES ($1, $2, $3)`,
		entry.ActionInvocationID, entry.Phase, entry.Message)
	return wrap("record action audit", err)
}
