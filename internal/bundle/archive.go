package bundle

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/latchflow/latchflow/internal/objstore"
)

// epoch is the fixed modification time written to every zip entry so
// that two builds over an identical, identically-ordered object set
// produce byte-identical archives (spec §9 Open Question (a)).
var epoch = time.Unix(0, 0).UTC()

// writeArchive reads each of objs' content from store and writes a
// deterministic, Store-method (uncompressed) zip archive into w,
// entries in the order given. Callers must pass objs already sorted by
// SortOrder.
func writeArchive(ctx context.Context, w io.Writer, store *objstore.Service, objs []ObjectRef) error {
	zw := zip.NewWriter(w)

	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := copyEntry(ctx, zw, store, obj); err != nil {
			_ = zw.Close()
			return err
		}
	}

	return zw.Close()
}

func copyEntry(ctx context.Context, zw *zip.Writer, store *objstore.Service, obj ObjectRef) error {
	body, _, err := store.Get(ctx, obj.StorageKey)
	if err != nil {
		return fmt.Errorf("bundle: read object %s (file %s): %w", obj.StorageKey, obj.FileID, err)
	}
	defer body.Close()

	header := &zip.FileHeader{
		Name:     obj.FileKey,
		Method:   zip.Store,
		Modified: epoch,
	}
	writer, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("bundle: create zip entry %s: %w", obj.FileKey, err)
	}
	if _, err := io.Copy(writer, body); err != nil {
		return fmt.Errorf("bundle: write zip entry %s: %w", obj.FileKey, err)
	}
	return nil
}
