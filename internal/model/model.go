// Package model defines the persistent entities of spec §3. These are
// plain data structs; persistence lives in internal/store, business rules
// live in the subsystem packages (internal/trigger, internal/action,
// internal/bundle, internal/download, internal/auth, internal/changelog).
package model

import (
	"encoding/json"
	"time"
)

// CapabilityKind distinguishes trigger from action plugin capabilities.
type CapabilityKind string

const (
	CapabilityTrigger CapabilityKind = "TRIGGER"
	CapabilityAction  CapabilityKind = "ACTION"
)

// Plugin is a registered plugin binary/module that exposes capabilities.
type Plugin struct {
	ID          string
	Name        string
	Version     string
	Description string
	CreatedAt   time.Time
}

// PluginCapability is one trigger or action capability a plugin exposes.
type PluginCapability struct {
	ID           string
	PluginID     string
	Kind         CapabilityKind
	Key          string
	DisplayName  string
	ConfigSchema json.RawMessage
	IsEnabled    bool
}

// ActorType classifies who/what performed a ChangeLog-audited mutation.
type ActorType string

const (
	ActorUser      ActorType = "USER"
	ActorAction    ActorType = "ACTION"
	ActorSystem    ActorType = "SYSTEM"
)

// TriggerDefinition parameterizes a TRIGGER capability.
type TriggerDefinition struct {
	ID           string
	CapabilityID string
	Name         string
	Config       json.RawMessage
	IsEnabled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	UpdatedBy    string
}

// ActionDefinition parameterizes an ACTION capability.
type ActionDefinition struct {
	ID           string
	CapabilityID string
	Name         string
	Config       json.RawMessage
	IsEnabled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CreatedBy    string
	UpdatedBy    string
}

// Pipeline owns an ordered set of steps and is attached to zero or more
// triggers.
type Pipeline struct {
	ID        string
	Name      string
	IsEnabled bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PipelineStep is one action invocation slot within a pipeline.
type PipelineStep struct {
	ID         string
	PipelineID string
	ActionID   string
	SortOrder  int
	IsEnabled  bool
}

// PipelineTrigger attaches a pipeline to a trigger definition.
type PipelineTrigger struct {
	ID          string
	PipelineID  string
	TriggerID   string
	SortOrder   int
	IsEnabled   bool
}

// TriggerEvent is an immutable, append-only record of one logical firing.
type TriggerEvent struct {
	ID                  string
	TriggerDefinitionID string
	Context             json.RawMessage
	CreatedAt           time.Time
}

// InvocationStatus is the ActionInvocation state machine (spec §3).
type InvocationStatus string

const (
	InvocationPending         InvocationStatus = "PENDING"
	InvocationSuccess         InvocationStatus = "SUCCESS"
	InvocationRetrying        InvocationStatus = "RETRYING"
	InvocationFailed          InvocationStatus = "FAILED"
	InvocationFailedPermanent InvocationStatus = "FAILED_PERMANENT"
	InvocationSkippedDisabled InvocationStatus = "SKIPPED_DISABLED"
)

// ActionInvocation is one row per attempt to execute an action; a retry
// creates a new row rather than mutating this one.
type ActionInvocation struct {
	ID                 string
	ActionDefinitionID string
	TriggerEventID     *string
	ManualInvokerID    *string
	Status             InvocationStatus
	Result             json.RawMessage
	RetryAt            *time.Time
	CreatedAt          time.Time
	CompletedAt        *time.Time
	Attempt            int
}

// Bundle is a named, ordered logical archive of files.
type Bundle struct {
	ID           string
	Name         string
	Description  string
	StoragePath  string
	Checksum     string
	BundleDigest string
	IsEnabled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Downloadable reports whether the bundle currently points at a built,
// retrievable archive, per spec §3's Bundle invariant.
func (b Bundle) Downloadable() bool {
	return b.BundleDigest != "" && b.BundleDigest != "pending" &&
		b.StoragePath != "" && b.StoragePath != "pending"
}

// BundleObject is the ordered inclusion of a File within a Bundle.
type BundleObject struct {
	ID        string
	BundleID  string
	FileID    string
	SortOrder int
	Required  bool
	IsEnabled bool
}

// File is a content-addressed blob.
type File struct {
	ID          string
	Key         string
	StorageKey  string
	Size        int64
	ContentType string
	ContentHash string // sha256 hex, 64 chars
	ETag        string
	Metadata    json.RawMessage
}

// Recipient is a named grantee of bundle access.
type Recipient struct {
	ID        string
	Email     string // unique, lowercase
	Name      string
	IsEnabled bool
}

// BundleAssignment grants a recipient time/quota-limited access to a
// bundle.
type BundleAssignment struct {
	ID               string
	BundleID         string
	RecipientID      string
	IsEnabled        bool
	MaxDownloads     *int
	CooldownSeconds  *int
	LastDownloadAt   *time.Time
	VerificationMet  bool
	CreatedAt        time.Time
}

// DownloadEvent is an append-only download audit record.
type DownloadEvent struct {
	ID                 string
	BundleAssignmentID string
	DownloadedAt       time.Time
	IP                 string
	UserAgent          string
}

// ChangeKind classifies a ChangeLog mutation.
type ChangeKind string

const (
	ChangeUpdateParent ChangeKind = "UPDATE_PARENT"
	ChangeUpdateChild  ChangeKind = "UPDATE_CHILD"
	ChangeAddChild     ChangeKind = "ADD_CHILD"
	ChangeRemoveChild  ChangeKind = "REMOVE_CHILD"
)

// ChangeLogEntry is one append-only version row for an entity.
type ChangeLogEntry struct {
	ID                      string
	EntityType              string
	EntityID                string
	Version                 int
	IsSnapshot              bool
	Hash                    string
	ChangeNote              string
	ChangedPath             string
	ChangeKind              ChangeKind
	CreatedAt               time.Time
	ActorType               ActorType
	ActorUserID             *string
	ActorInvocationID       *string
	ActorActionDefinitionID *string
	OnBehalfOfUserID        *string
	// Snapshot carries the full entity state as JSON when IsSnapshot is
	// true; Delta carries a JSON merge patch against the prior version
	// otherwise. Exactly one is populated.
	Snapshot json.RawMessage
	Delta    json.RawMessage
}
