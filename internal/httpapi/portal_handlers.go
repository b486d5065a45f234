package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/latchflow/latchflow/internal/download"
)

func (a *api) handlePortalMe(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	rec, err := a.Store.GetRecipient(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipientDTO(rec))
}

// handlePortalAssignments serves GET /portal/assignments: every bundle
// the authenticated recipient has access to, annotated with the §3
// AssignmentSummary projection (used/remaining/cooldown) so the portal
// never has to compute quota arithmetic client-side.
func (a *api) handlePortalAssignments(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	asns, err := a.Store.ListAssignmentsForRecipient(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}

	now := time.Now()
	out := make([]assignmentSummaryDTO, 0, len(asns))
	for _, asn := range asns {
		if !asn.IsEnabled {
			continue
		}
		used, err := a.Store.CountDownloadsForAssignment(r.Context(), asn.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, newAssignmentSummaryDTO(asn, used, now))
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePortalBundles lists the bundles backing the recipient's
// enabled assignments, for a landing page that doesn't need the full
// assignment summary.
func (a *api) handlePortalBundles(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	asns, err := a.Store.ListAssignmentsForRecipient(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]bundleDTO, 0, len(asns))
	for _, asn := range asns {
		if !asn.IsEnabled {
			continue
		}
		b, err := a.Store.GetBundle(r.Context(), asn.BundleID)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, newBundleDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// authorizedAssignment verifies the recipient holds an enabled
// assignment on bundleID, returning its id so handlers can reuse it
// without duplicating the ListAssignmentsForRecipient scan.
func (a *api) authorizedAssignment(w http.ResponseWriter, r *http.Request, recipientID, bundleID string) (asnID string, ok bool) {
	asn, err := a.Store.GetAssignment(r.Context(), bundleID, recipientID)
	if err != nil {
		writeError(w, err)
		return "", false
	}
	if !asn.IsEnabled {
		writeError(w, forbidden("bundle assignment is disabled"))
		return "", false
	}
	return asn.ID, true
}

func (a *api) handlePortalBundleDetail(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	bundleID := mux.Vars(r)["bundleId"]
	if _, ok := a.authorizedAssignment(w, r, recipientID, bundleID); !ok {
		return
	}

	b, err := a.Store.GetBundle(r.Context(), bundleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBundleDTO(b))
}

func (a *api) handlePortalBundleObjects(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	bundleID := mux.Vars(r)["bundleId"]
	if _, ok := a.authorizedAssignment(w, r, recipientID, bundleID); !ok {
		return
	}

	objs, err := a.Store.ListBundleObjects(r.Context(), bundleID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]bundleObjectDTO, 0, len(objs))
	for _, o := range objs {
		if o.IsEnabled {
			out = append(out, newBundleObjectDTO(o))
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePortalDownload serves the recipient-facing bundle archive
// download. It is an extension beyond spec §6.1's elided portal route
// list: §4.6 requires a recipient-reachable download, and this is the
// only place download.Guard is wired to an HTTP handler.
func (a *api) handlePortalDownload(w http.ResponseWriter, r *http.Request) {
	recipientID, ok := a.requireRecipient(w, r)
	if !ok {
		return
	}
	bundleID := mux.Vars(r)["bundleId"]

	assignment, err := a.Store.GetAssignment(r.Context(), bundleID, recipientID)
	if err != nil {
		writeError(w, err)
		return
	}

	req := download.Request{AssignmentID: assignment.ID, IP: clientIP(r), UserAgent: r.UserAgent()}
	resolvedBundleID, err := a.Guard.Authorize(r.Context(), req, time.Now())
	if err != nil {
		writeError(w, err)
		return
	}

	stream, err := a.Guard.Open(r.Context(), resolvedBundleID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Body.Close()

	w.Header().Set("Content-Type", "application/zip")
	if stream.ETag != "" {
		w.Header().Set("ETag", stream.ETag)
	}
	if stream.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, stream.Body); err != nil {
		a.Logger.Warn("httpapi: stream bundle download", "bundle_id", resolvedBundleID, "error", err)
	}
}
