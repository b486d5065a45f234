package httpapi_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/latchflow/latchflow/internal/bundle"
	"github.com/latchflow/latchflow/internal/download"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/store"
)

// fakeStore backs AdminStore, bundle.Store, and download.Store for the
// httpapi package's tests, grounded on internal/auth/auth_test.go's
// map-plus-mutex fakeStore pattern.
type fakeStore struct {
	mu sync.Mutex

	nextID int

	bundles     map[string]model.Bundle
	objects     map[string]model.BundleObject
	files       map[string]model.File
	recipients  map[string]model.Recipient
	assignments map[string]model.BundleAssignment
	downloads   []model.DownloadEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bundles:     map[string]model.Bundle{},
		objects:     map[string]model.BundleObject{},
		files:       map[string]model.File{},
		recipients:  map[string]model.Recipient{},
		assignments: map[string]model.BundleAssignment{},
	}
}

func (s *fakeStore) id(prefix string) string {
	s.nextID++
	return fmt.Sprintf("%s-%d", prefix, s.nextID)
}

// --- AdminStore: bundles ---

func (s *fakeStore) AdminCreateBundle(_ context.Context, name, description string) (model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := model.Bundle{
		ID: s.id("bundle"), Name: name, Description: description,
		StoragePath: "pending", BundleDigest: "pending", IsEnabled: true,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.bundles[b.ID] = b
	return b, nil
}

func (s *fakeStore) ListBundles(_ context.Context) ([]model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Bundle, 0, len(s.bundles))
	for _, b := range s.bundles {
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) GetBundle(_ context.Context, bundleID string) (model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[bundleID]
	if !ok {
		return model.Bundle{}, errNotFound
	}
	return b, nil
}

func (s *fakeStore) PatchBundle(_ context.Context, bundleID string, name, description *string, isEnabled *bool) (model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[bundleID]
	if !ok {
		return model.Bundle{}, errNotFound
	}
	if name != nil {
		b.Name = *name
	}
	if description != nil {
		b.Description = *description
	}
	if isEnabled != nil {
		b.IsEnabled = *isEnabled
	}
	b.UpdatedAt = time.Now()
	s.bundles[bundleID] = b
	return b, nil
}

func (s *fakeStore) DeleteBundle(_ context.Context, bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bundles, bundleID)
	return nil
}

func (s *fakeStore) AddBundleObject(_ context.Context, bundleID, fileID string, sortOrder int, required bool) (model.BundleObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := model.BundleObject{
		ID: s.id("object"), BundleID: bundleID, FileID: fileID,
		SortOrder: sortOrder, Required: required, IsEnabled: true,
	}
	s.objects[o.ID] = o
	return o, nil
}

func (s *fakeStore) ToggleBundleObject(_ context.Context, bundleID, objectID string, isEnabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objects[objectID]
	if !ok || o.BundleID != bundleID {
		return errNotFound
	}
	o.IsEnabled = isEnabled
	s.objects[objectID] = o
	return nil
}

func (s *fakeStore) ListBundleObjects(_ context.Context, bundleID string) ([]model.BundleObject, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BundleObject
	for _, o := range s.objects {
		if o.BundleID == bundleID {
			out = append(out, o)
		}
	}
	return out, nil
}

// --- bundle.Store / download.Store shared surface ---

func (s *fakeStore) ListEnabledObjects(_ context.Context, bundleID string) ([]bundle.ObjectRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []bundle.ObjectRef
	for _, o := range s.objects {
		if o.BundleID != bundleID || !o.IsEnabled {
			continue
		}
		f := s.files[o.FileID]
		out = append(out, bundle.ObjectRef{
			FileID: o.FileID, SortOrder: o.SortOrder,
			ContentHash: f.ContentHash, FileKey: f.Key, StorageKey: f.StorageKey,
		})
	}
	return out, nil
}

func (s *fakeStore) BundleIDsForFile(_ context.Context, fileID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, o := range s.objects {
		if o.FileID == fileID {
			out = append(out, o.BundleID)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateBundleArtifact(_ context.Context, bundleID, digest, storageKey, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bundles[bundleID]
	if !ok {
		return errNotFound
	}
	b.BundleDigest = digest
	b.StoragePath = storageKey
	b.Checksum = checksum
	s.bundles[bundleID] = b
	return nil
}

// --- AdminStore: files ---

func (s *fakeStore) CreateFile(_ context.Context, f model.File) (model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.ID = s.id("file")
	s.files[f.ID] = f
	return f, nil
}

func (s *fakeStore) ListFiles(_ context.Context) ([]model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.File, 0, len(s.files))
	for _, f := range s.files {
		out = append(out, f)
	}
	return out, nil
}

func (s *fakeStore) GetFile(_ context.Context, fileID string) (model.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[fileID]
	if !ok {
		return model.File{}, errNotFound
	}
	return f, nil
}

func (s *fakeStore) DeleteFile(_ context.Context, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, fileID)
	return nil
}

// --- AdminStore: recipients ---

func (s *fakeStore) CreateRecipient(_ context.Context, email, name string) (model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Recipient{ID: s.id("recipient"), Email: email, Name: name, IsEnabled: true}
	s.recipients[r.ID] = r
	return r, nil
}

func (s *fakeStore) ListRecipients(_ context.Context) ([]model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Recipient, 0, len(s.recipients))
	for _, r := range s.recipients {
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeStore) GetRecipient(_ context.Context, recipientID string) (model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[recipientID]
	if !ok {
		return model.Recipient{}, errNotFound
	}
	return r, nil
}

func (s *fakeStore) PatchRecipient(_ context.Context, recipientID string, name *string, isEnabled *bool) (model.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.recipients[recipientID]
	if !ok {
		return model.Recipient{}, errNotFound
	}
	if name != nil {
		r.Name = *name
	}
	if isEnabled != nil {
		r.IsEnabled = *isEnabled
	}
	s.recipients[recipientID] = r
	return r, nil
}

func (s *fakeStore) DeleteRecipient(_ context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.recipients, recipientID)
	return nil
}

// --- AdminStore: assignments ---

func (s *fakeStore) CreateAssignment(_ context.Context, bundleID, recipientID string, maxDownloads, cooldownSeconds *int) (model.BundleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := model.BundleAssignment{
		ID: s.id("assignment"), BundleID: bundleID, RecipientID: recipientID,
		IsEnabled: true, MaxDownloads: maxDownloads, CooldownSeconds: cooldownSeconds,
		CreatedAt: time.Now(),
	}
	s.assignments[a.ID] = a
	return a, nil
}

func (s *fakeStore) GetAssignment(_ context.Context, bundleID, recipientID string) (model.BundleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.BundleID == bundleID && a.RecipientID == recipientID {
			return a, nil
		}
	}
	return model.BundleAssignment{}, errNotFound
}

func (s *fakeStore) ListAssignmentsForBundle(_ context.Context, bundleID string) ([]model.BundleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BundleAssignment
	for _, a := range s.assignments {
		if a.BundleID == bundleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListAssignmentsForRecipient(_ context.Context, recipientID string) ([]model.BundleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.BundleAssignment
	for _, a := range s.assignments {
		if a.RecipientID == recipientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteAssignment(_ context.Context, bundleID, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assignments {
		if a.BundleID == bundleID && a.RecipientID == recipientID {
			delete(s.assignments, id)
		}
	}
	return nil
}

func (s *fakeStore) CountDownloadsForAssignment(_ context.Context, assignmentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.downloads {
		if d.BundleAssignmentID == assignmentID {
			n++
		}
	}
	return n, nil
}

// --- download.Store ---

type fakeTx struct{ s *fakeStore }

func (tx fakeTx) LoadAssignmentForUpdate(_ context.Context, assignmentID string) (model.BundleAssignment, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	a, ok := tx.s.assignments[assignmentID]
	if !ok {
		return model.BundleAssignment{}, errNotFound
	}
	return a, nil
}

func (tx fakeTx) CountDownloadEvents(_ context.Context, assignmentID string) (int, error) {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	n := 0
	for _, d := range tx.s.downloads {
		if d.BundleAssignmentID == assignmentID {
			n++
		}
	}
	return n, nil
}

func (tx fakeTx) InsertDownloadEvent(_ context.Context, event model.DownloadEvent) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	tx.s.downloads = append(tx.s.downloads, event)
	return nil
}

func (tx fakeTx) TouchLastDownloadAt(_ context.Context, assignmentID string, at time.Time) error {
	tx.s.mu.Lock()
	defer tx.s.mu.Unlock()
	a, ok := tx.s.assignments[assignmentID]
	if !ok {
		return errNotFound
	}
	a.LastDownloadAt = &at
	tx.s.assignments[assignmentID] = a
	return nil
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(download.Tx) error) error {
	return fn(fakeTx{s: s})
}

func (s *fakeStore) downloadListEnabledObjects(ctx context.Context, bundleID string) ([]download.BundleObjectRef, error) {
	objs, err := s.ListEnabledObjects(ctx, bundleID)
	if err != nil {
		return nil, err
	}
	out := make([]download.BundleObjectRef, len(objs))
	for i, o := range objs {
		out[i] = download.BundleObjectRef{FileID: o.FileID, SortOrder: o.SortOrder, ContentHash: o.ContentHash}
	}
	return out, nil
}

// downloadStoreAdapter resolves the ListEnabledObjects method-name
// collision between bundle.Store (returns []bundle.ObjectRef) and
// download.Store (returns []download.BundleObjectRef), mirroring
// internal/store/download.go's DownloadStore wrapper.
type downloadStoreAdapter struct{ s *fakeStore }

func (d downloadStoreAdapter) WithTx(ctx context.Context, fn func(download.Tx) error) error {
	return d.s.WithTx(ctx, fn)
}

func (d downloadStoreAdapter) GetBundle(ctx context.Context, bundleID string) (model.Bundle, error) {
	return d.s.GetBundle(ctx, bundleID)
}

func (d downloadStoreAdapter) ListEnabledObjects(ctx context.Context, bundleID string) ([]download.BundleObjectRef, error) {
	return d.s.downloadListEnabledObjects(ctx, bundleID)
}

// errNotFound is store.ErrNotFound itself, not a lookalike: writeError
// (internal/httpapi/respond.go) only maps a bare not-found error to 404
// when it matches that sentinel via errors.Is.
var errNotFound = store.ErrNotFound
