// Package httpapi implements the public admin + portal HTTP surface of
// spec §6.1: gorilla/mux routes converting into internal/auth,
// internal/bundle, internal/download, internal/changelog and
// internal/store calls, with every error translated to the §6.1 JSON
// envelope via internal/apierr. Grounded on internal/api/router.go's
// RouterConfig/NewRouter shape and internal/api/middleware's generic
// (non-domain) middleware, with the teacher's alert-history route
// tables replaced entirely by bundle/file/recipient/auth/portal routes.
package httpapi

import (
	"context"

	"github.com/latchflow/latchflow/internal/model"
)

// AdminStore is the persistence surface the admin/portal handlers need,
// composing internal/store/admin.go's methods with the bundle-lookup
// methods internal/store/bundle.go already exposes for
// internal/bundle.Store. Defined here, not on *store.Store directly,
// following the same "each consumer declares its own Store interface"
// convention as internal/trigger.Store, internal/bundle.Store, and the
// rest.
type AdminStore interface {
	// Bundles
	AdminCreateBundle(ctx context.Context, name, description string) (model.Bundle, error)
	ListBundles(ctx context.Context) ([]model.Bundle, error)
	GetBundle(ctx context.Context, bundleID string) (model.Bundle, error)
	PatchBundle(ctx context.Context, bundleID string, name, description *string, isEnabled *bool) (model.Bundle, error)
	DeleteBundle(ctx context.Context, bundleID string) error

	// Bundle membership
	AddBundleObject(ctx context.Context, bundleID, fileID string, sortOrder int, required bool) (model.BundleObject, error)
	ToggleBundleObject(ctx context.Context, bundleID, objectID string, isEnabled bool) error
	ListBundleObjects(ctx context.Context, bundleID string) ([]model.BundleObject, error)

	// Files
	CreateFile(ctx context.Context, f model.File) (model.File, error)
	ListFiles(ctx context.Context) ([]model.File, error)
	GetFile(ctx context.Context, fileID string) (model.File, error)
	DeleteFile(ctx context.Context, fileID string) error

	// Recipients
	CreateRecipient(ctx context.Context, email, name string) (model.Recipient, error)
	ListRecipients(ctx context.Context) ([]model.Recipient, error)
	GetRecipient(ctx context.Context, recipientID string) (model.Recipient, error)
	PatchRecipient(ctx context.Context, recipientID string, name *string, isEnabled *bool) (model.Recipient, error)
	DeleteRecipient(ctx context.Context, recipientID string) error

	// Assignments
	CreateAssignment(ctx context.Context, bundleID, recipientID string, maxDownloads, cooldownSeconds *int) (model.BundleAssignment, error)
	GetAssignment(ctx context.Context, bundleID, recipientID string) (model.BundleAssignment, error)
	ListAssignmentsForBundle(ctx context.Context, bundleID string) ([]model.BundleAssignment, error)
	ListAssignmentsForRecipient(ctx context.Context, recipientID string) ([]model.BundleAssignment, error)
	DeleteAssignment(ctx context.Context, bundleID, recipientID string) error

	// BundleIDsForFile supports rebuild scheduling after a file upload
	// changes a File's content.
	BundleIDsForFile(ctx context.Context, fileID string) ([]string, error)

	// CountDownloadsForAssignment backs the portal's remaining-quota
	// projection (§3 extension: AssignmentSummary).
	CountDownloadsForAssignment(ctx context.Context, assignmentID string) (int, error)
}
