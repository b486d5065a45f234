package bundle

import (
	"bytes"
	"strconv"

	"github.com/latchflow/latchflow/internal/hashutil"
)

// digestVersion is the leading field of the canonical serialization
// (spec §4.5 step 1); bumping it invalidates every previously computed
// digest, forcing a full rebuild pass.
const digestVersion = "1"

// Digest computes the spec §4.5 step 1 bundle digest for bundleID over
// objs, which callers must have already sorted by SortOrder. Exported
// so callers outside the scheduler (the download guard's lazy-rebuild
// drift check) can compare against a Bundle's stored BundleDigest
// without re-running a build.
func Digest(bundleID string, objs []ObjectRef) string {
	return computeDigest(bundleID, objs)
}

// computeDigest hashes the canonical serialization
// "version\x00 bundleID\x00 count\x00 (fileId\x00 sortOrder\x00 contentHash\x00)*"
// over objs, which callers must have already sorted by SortOrder.
func computeDigest(bundleID string, objs []ObjectRef) string {
	var buf bytes.Buffer
	buf.WriteString(digestVersion)
	buf.WriteByte(0)
	buf.WriteString(bundleID)
	buf.WriteByte(0)
	buf.WriteString(strconv.Itoa(len(objs)))
	buf.WriteByte(0)
	for _, o := range objs {
		buf.WriteString(o.FileID)
		buf.WriteByte(0)
		buf.WriteString(strconv.Itoa(o.SortOrder))
		buf.WriteByte(0)
		buf.WriteString(o.ContentHash)
		buf.WriteByte(0)
	}
	return hashutil.SHA256Hex(buf.Bytes())
}
