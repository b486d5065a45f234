package httpapi_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/model"
)

func TestUploadAndDownloadFile(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeFilesWrite, model.ScopeFilesRead)

	req := httptest.NewRequest(http.MethodPost, "/files/upload", strings.NewReader("hello world"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	decodeBody(t, rec, &created)
	id, _ := created["id"].(string)
	require.NotEmpty(t, id)
	require.NotEmpty(t, created["contentHash"])

	req = httptest.NewRequest(http.MethodGet, "/files/"+id+"/download", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	env.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "hello world", rec.Body.String())
}

func TestCreateFileWithoutStoredObjectFails(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeFilesWrite)

	rec := doJSON(t, env, http.MethodPost, "/files", map[string]any{
		"key": "never/uploaded.txt", "contentHash": "abc123",
	}, token)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteFile(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeFilesWrite, model.ScopeFilesRead)

	f, err := env.Store.CreateFile(ctxBg(), model.File{Key: "a.txt", StorageKey: "a.txt", ContentHash: "h"})
	require.NoError(t, err)

	rec := doJSON(t, env, http.MethodDelete, "/files/"+f.ID, nil, token)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, env, http.MethodGet, "/files/"+f.ID, nil, token)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadURLNotImplementedWhenUnsupported(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeFilesWrite)

	rec := doJSON(t, env, http.MethodPost, "/files/upload-url", map[string]any{}, token)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
