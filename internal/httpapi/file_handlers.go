package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/objstore"
)

func (a *api) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := a.Store.ListFiles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]fileDTO, len(files))
	for i, f := range files {
		out[i] = newFileDTO(f)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleGetFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]
	f, err := a.Store.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newFileDTO(f))
}

// createFileRequest registers metadata for content that already exists
// under key in the object store (e.g. uploaded out of band by a CLI
// that called objstore directly). Most callers should use
// handleUploadFile instead, which stores the content itself.
type createFileRequest struct {
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	ContentHash string `json:"contentHash"`
}

func (a *api) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Key == "" || req.ContentHash == "" {
		writeError(w, badRequest("key and contentHash are required"))
		return
	}

	info, err := a.Objects.Head(r.Context(), req.Key)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			writeError(w, apierrNoStoragePath("no stored object at key"))
			return
		}
		writeError(w, err)
		return
	}

	f, err := a.Store.CreateFile(r.Context(), model.File{
		Key:         req.Key,
		StorageKey:  req.Key,
		Size:        info.Size,
		ContentType: req.ContentType,
		ContentHash: req.ContentHash,
		ETag:        info.ETag,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFileDTO(f))
}

func (a *api) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]
	if err := a.Store.DeleteFile(r.Context(), fileID); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

// handleUploadFile implements spec §4.6's direct-upload path: the
// request body is the file content itself, content-addressed and
// stored via objstore.Put, then registered as a File row. No bundle
// rebuild is scheduled: the new File row is not yet part of any bundle.
func (a *api) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	stored, err := a.Objects.Put(r.Context(), r.Body, contentType)
	if err != nil {
		writeError(w, err)
		return
	}

	f, err := a.Store.CreateFile(r.Context(), model.File{
		Key:         stored.Key,
		StorageKey:  stored.Key,
		Size:        stored.Size,
		ContentType: contentType,
		ContentHash: stored.ContentHash,
		ETag:        stored.ETag,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newFileDTO(f))
}

// handleDownloadFile streams a raw File's content for admin preview,
// distinct from the recipient-facing bundle download in
// portal_handlers.go which goes through download.Guard's quota and
// cooldown enforcement.
func (a *api) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["id"]
	f, err := a.Store.GetFile(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}

	body, info, err := a.Objects.Get(r.Context(), f.StorageKey)
	if err != nil {
		if errors.Is(err, objstore.ErrNotFound) {
			writeError(w, apierrNoStoragePath("file content is no longer available"))
			return
		}
		writeError(w, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", f.ContentType)
	if info.ETag != "" {
		w.Header().Set("ETag", info.ETag)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		a.Logger.Warn("httpapi: stream file download", "file_id", fileID, "error", err)
	}
}

// handleUploadURL and handleCommitFile back the presign-then-commit
// upload flow (spec §6.2's PresignPut). Full support requires
// client-driven chunked/multipart upload bookkeeping this surface
// doesn't yet track, so both are honestly unimplemented rather than
// faked.
func (a *api) handleUploadURL(w http.ResponseWriter, r *http.Request) {
	if !a.Objects.SupportsSignedPut() {
		writeError(w, notImplemented("the active storage driver does not support pre-signed uploads"))
		return
	}
	writeError(w, notImplemented("presigned upload flow is not yet implemented"))
}

func (a *api) handleCommitFile(w http.ResponseWriter, r *http.Request) {
	writeError(w, notImplemented("presigned upload commit flow is not yet implemented"))
}

func (a *api) handleBatchDeleteFiles(w http.ResponseWriter, r *http.Request) {
	writeError(w, notImplemented("batch file delete is not yet implemented"))
}

func (a *api) handleBatchMoveFiles(w http.ResponseWriter, r *http.Request) {
	writeError(w, notImplemented("batch file move is not yet implemented"))
}
