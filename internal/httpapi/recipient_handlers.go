package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
)

type createRecipientRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (a *api) handleCreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req createRecipientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" {
		writeError(w, badRequest("email is required"))
		return
	}
	rec, err := a.Store.CreateRecipient(r.Context(), req.Email, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecipientDTO(rec))
}

func (a *api) handleListRecipients(w http.ResponseWriter, r *http.Request) {
	recs, err := a.Store.ListRecipients(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]recipientDTO, len(recs))
	for i, rec := range recs {
		out[i] = newRecipientDTO(rec)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetRecipient(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientId"]
	rec, err := a.Store.GetRecipient(r.Context(), recipientID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipientDTO(rec))
}

type patchRecipientRequest struct {
	Name      *string `json:"name"`
	IsEnabled *bool   `json:"isEnabled"`
}

func (a *api) handlePatchRecipient(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientId"]
	var req patchRecipientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	rec, err := a.Store.PatchRecipient(r.Context(), recipientID, req.Name, req.IsEnabled)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecipientDTO(rec))
}

func (a *api) handleDeleteRecipient(w http.ResponseWriter, r *http.Request) {
	recipientID := mux.Vars(r)["recipientId"]
	if err := a.Store.DeleteRecipient(r.Context(), recipientID); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

// --- Bundle <-> recipient assignments ---

type createAssignmentRequest struct {
	RecipientID     string `json:"recipientId"`
	MaxDownloads    *int   `json:"maxDownloads"`
	CooldownSeconds *int   `json:"cooldownSeconds"`
}

func (a *api) handleCreateAssignment(w http.ResponseWriter, r *http.Request) {
	bundleID := mux.Vars(r)["bundleId"]
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.RecipientID == "" {
		writeError(w, badRequest("recipientId is required"))
		return
	}

	asn, err := a.Store.CreateAssignment(r.Context(), bundleID, req.RecipientID, req.MaxDownloads, req.CooldownSeconds)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssignmentDTO(asn))
}

type batchAssignmentRequest struct {
	Recipients []createAssignmentRequest `json:"recipients"`
}

func (a *api) handleBatchCreateAssignments(w http.ResponseWriter, r *http.Request) {
	bundleID := mux.Vars(r)["bundleId"]
	var req batchAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	out := make([]assignmentDTO, 0, len(req.Recipients))
	for _, item := range req.Recipients {
		if item.RecipientID == "" {
			writeError(w, badRequest("recipientId is required for every entry"))
			return
		}
		asn, err := a.Store.CreateAssignment(r.Context(), bundleID, item.RecipientID, item.MaxDownloads, item.CooldownSeconds)
		if err != nil {
			writeError(w, err)
			return
		}
		out = append(out, newAssignmentDTO(asn))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *api) handleListBundleAssignments(w http.ResponseWriter, r *http.Request) {
	bundleID := mux.Vars(r)["bundleId"]
	asns, err := a.Store.ListAssignmentsForBundle(r.Context(), bundleID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]assignmentDTO, len(asns))
	for i, asn := range asns {
		out[i] = newAssignmentDTO(asn)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleDeleteAssignment(w http.ResponseWriter, r *http.Request) {
	bundleID := mux.Vars(r)["bundleId"]
	recipientID := r.URL.Query().Get("recipientId")
	if recipientID == "" {
		writeError(w, badRequest("recipientId query parameter is required"))
		return
	}
	if err := a.Store.DeleteAssignment(r.Context(), bundleID, recipientID); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}
