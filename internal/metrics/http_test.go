package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(Middleware)
	r.HandleFunc("/bundles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}).Methods(http.MethodGet)
	return r
}

// TestMiddlewareLabelsByRouteTemplateNotRawPath is the regression test
// for the teacher's acknowledged-incomplete normalizeEndpoint: three
// requests to distinct bundle IDs must collapse onto the single
// "/bundles/{id}" route label, not fan out into three label sets.
func TestMiddlewareLabelsByRouteTemplateNotRawPath(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/bundles/{id}", "200"))

	router := newTestRouter()
	for _, id := range []string{"b1", "b2", "b3"} {
		req := httptest.NewRequest(http.MethodGet, "/bundles/"+id, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	after := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/bundles/{id}", "200"))
	assert.Equal(t, before+3, after)
}

func TestMiddlewareRecordsStatusCode(t *testing.T) {
	before := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/boom", "500"))

	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	after := testutil.ToFloat64(requestsTotal.WithLabelValues(http.MethodGet, "/boom", "500"))
	assert.Equal(t, before+1, after)
}

func TestMiddlewareUnmatchedRouteDoesNotPanic(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { router.ServeHTTP(rec, req) })
	require.Equal(t, http.StatusNotFound, rec.Code)
}
