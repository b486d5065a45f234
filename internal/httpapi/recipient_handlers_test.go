package httpapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/model"
)

func TestCreateRecipientAndAssignment(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(
		model.ScopeRecipientsWrite, model.ScopeRecipientsRead,
		model.ScopeBundlesWrite,
	)

	rec := doJSON(t, env, http.MethodPost, "/recipients", map[string]string{
		"email": "dana@example.com", "name": "Dana",
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var recipient map[string]any
	decodeBody(t, rec, &recipient)
	recipientID, _ := recipient["id"].(string)
	require.NotEmpty(t, recipientID)

	b, err := env.Store.AdminCreateBundle(ctxBg(), "bundle", "")
	require.NoError(t, err)

	maxDownloads := 3
	rec = doJSON(t, env, http.MethodPost, fmt.Sprintf("/bundles/%s/recipients", b.ID), map[string]any{
		"recipientId": recipientID, "maxDownloads": maxDownloads,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	var assignment map[string]any
	decodeBody(t, rec, &assignment)
	require.Equal(t, recipientID, assignment["recipientId"])
	require.Equal(t, float64(maxDownloads), assignment["maxDownloads"])

	rec = doJSON(t, env, http.MethodGet, fmt.Sprintf("/bundles/%s/recipients", b.ID), nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var assignments []map[string]any
	decodeBody(t, rec, &assignments)
	require.Len(t, assignments, 1)
}

func TestBatchCreateAssignmentsRequiresRecipientID(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeRecipientsWrite)

	b, err := env.Store.AdminCreateBundle(ctxBg(), "bundle", "")
	require.NoError(t, err)

	rec := doJSON(t, env, http.MethodPost, fmt.Sprintf("/bundles/%s/recipients/batch", b.ID), map[string]any{
		"recipients": []map[string]any{{}},
	}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAssignmentRequiresQueryParam(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeRecipientsWrite)

	rec := doJSON(t, env, http.MethodDelete, "/bundles/b1/recipients", nil, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPatchRecipientDisable(t *testing.T) {
	env := newTestEnv()
	token := env.adminToken(model.ScopeRecipientsWrite)

	r, err := env.Store.CreateRecipient(ctxBg(), "a@example.com", "A")
	require.NoError(t, err)

	disabled := false
	rec := doJSON(t, env, http.MethodPatch, "/recipients/"+r.ID, map[string]any{"isEnabled": disabled}, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var patched map[string]any
	decodeBody(t, rec, &patched)
	require.Equal(t, disabled, patched["isEnabled"])
}
