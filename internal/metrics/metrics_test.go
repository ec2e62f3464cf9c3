package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveObjectOp(t *testing.T) {
	r := NewRegistry()

	r.ObserveObjectOp("list", nil)
	r.ObserveObjectOp("list", nil)
	r.ObserveObjectOp("list", errors.New("boom"))

	assert.Equal(t, float64(2), testutil.ToFloat64(r.objectOpsTotal.WithLabelValues("list", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.objectOpsTotal.WithLabelValues("list", "error")))
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	r := NewRegistry()

	router := mux.NewRouter()
	router.Use(r.Middleware())
	router.HandleFunc("/api/bucket/{id}/listByFolder", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	request := httptest.NewRequest(http.MethodGet, "/api/bucket/b-123/listByFolder", nil)
	router.ServeHTTP(httptest.NewRecorder(), request)

	// The counter uses the route template, not the concrete bucket id
	count := testutil.ToFloat64(
		r.requestsTotal.WithLabelValues("GET", "/api/bucket/{id}/listByFolder", "200"))
	assert.Equal(t, float64(1), count)
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	r := NewRegistry()
	r.ObserveObjectOp("upload", nil)

	recorder := httptest.NewRecorder()
	r.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "bucketview_object_operations_total")
}
